package imageio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/bstardust/photokit/pkg/tags"
)

var (
	exifHeader = []byte("Exif\x00\x00")
	pngSig     = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	rafMagic   = []byte("FUJIFILMCCD-RAW")
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	maxSegment = 0xFFFF - 2
)

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == markerSOI
}

func isTIFF(data []byte) bool {
	return len(data) >= 4 &&
		(bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*")))
}

func isPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSig)
}

func isRAF(data []byte) bool {
	return bytes.HasPrefix(data, rafMagic)
}

// isHEIF checks for an ISO-BMFF ftyp box with a HEIF family brand.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

// jpegExif returns the TIFF payload of the first Exif APP1 segment.
func jpegExif(data []byte) []byte {
	if !isJPEG(data) {
		return nil
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++
			continue
		}
		if marker == markerEOI || marker == markerSOS {
			return nil
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if segLen < 2 || i+2+segLen > len(data) {
			return nil
		}
		payload := data[i+4 : i+2+segLen]
		if marker == markerAPP1 && bytes.HasPrefix(payload, exifHeader) {
			return payload[len(exifHeader):]
		}
		i += 2 + segLen
	}
	return nil
}

// insertJPEGExif places an Exif APP1 segment directly after SOI.
func insertJPEGExif(data, block []byte) ([]byte, error) {
	if !isJPEG(data) {
		return nil, fmt.Errorf("not a JPEG stream")
	}
	payloadLen := len(exifHeader) + len(block)
	if payloadLen > maxSegment {
		return nil, fmt.Errorf("exif block of %d bytes exceeds APP1 limit", payloadLen)
	}

	out := make([]byte, 0, len(data)+payloadLen+4)
	out = append(out, data[:2]...)
	out = append(out, 0xFF, markerAPP1)
	out = binary.BigEndian.AppendUint16(out, uint16(payloadLen+2))
	out = append(out, exifHeader...)
	out = append(out, block...)
	out = append(out, data[2:]...)
	return out, nil
}

// pngExif returns the contents of the eXIf chunk.
func pngExif(data []byte) []byte {
	if !isPNG(data) {
		return nil
	}
	i := len(pngSig)
	for i+12 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		if n < 0 || i+12+n > len(data) {
			return nil
		}
		if typ == "eXIf" {
			return data[i+8 : i+8+n]
		}
		if typ == "IEND" {
			return nil
		}
		i += 12 + n
	}
	return nil
}

// insertPNGExif places an eXIf chunk directly after IHDR.
func insertPNGExif(data, block []byte) ([]byte, error) {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if !isPNG(data) || len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return nil, fmt.Errorf("not a PNG stream")
	}

	var chunk bytes.Buffer
	binary.Write(&chunk, binary.BigEndian, uint32(len(block)))
	chunk.WriteString("eXIf")
	chunk.Write(block)
	crc := crc32.NewIEEE()
	crc.Write([]byte("eXIf"))
	crc.Write(block)
	binary.Write(&chunk, binary.BigEndian, crc.Sum32())

	out := make([]byte, 0, len(data)+chunk.Len())
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk.Bytes()...)
	out = append(out, data[ihdrEnd:]...)
	return out, nil
}

// rafExif reads the EXIF block of the JPEG preview embedded in a Fujifilm
// RAF file. The preview offset and length sit at bytes 84 and 88.
func rafExif(data []byte) []byte {
	if !isRAF(data) || len(data) < 92 {
		return nil
	}
	off := int(binary.BigEndian.Uint32(data[84:88]))
	n := int(binary.BigEndian.Uint32(data[88:92]))
	if off <= 0 || n <= 0 || off+n > len(data) {
		return nil
	}
	return jpegExif(data[off : off+n])
}

// insertTIFFExif rewrites a single-image TIFF stream so that its IFD0 also
// carries the metadata entries of props, with Exif and GPS sub-IFDs. The
// pixel strip must start at offset 8, as golang.org/x/image/tiff writes it.
// The result is big-endian.
func insertTIFFExif(data []byte, props tags.Dict) ([]byte, error) {
	meta0, exifIFD, gpsIFD := metadataIFDs(props)
	if len(meta0) == 0 && len(exifIFD) == 0 && len(gpsIFD) == 0 {
		return data, nil
	}
	if !isTIFF(data) || len(data) < 8 {
		return nil, fmt.Errorf("not a TIFF stream")
	}

	var src binary.ByteOrder = binary.LittleEndian
	if data[0] == 'M' {
		src = binary.BigEndian
	}
	ifdOff := int(src.Uint32(data[4:8]))
	if ifdOff < 8 || ifdOff+2 > len(data) {
		return nil, fmt.Errorf("TIFF IFD offset %d out of range", ifdOff)
	}
	n := int(src.Uint16(data[ifdOff : ifdOff+2]))
	if ifdOff+2+12*n > len(data) {
		return nil, fmt.Errorf("TIFF IFD truncated")
	}

	image0 := make(ifd, 0, n+len(meta0))
	for i := 0; i < n; i++ {
		p := data[ifdOff+2+12*i:]
		e := ifdEntry{tag: src.Uint16(p[0:2]), typ: src.Uint16(p[2:4]), count: src.Uint32(p[4:8])}
		if e.tag == tagExifIFD || e.tag == tagGPSIFD {
			continue
		}
		unit := typeSize(e.typ)
		if unit == 0 {
			return nil, fmt.Errorf("TIFF tag %#x has unsupported type %d", e.tag, e.typ)
		}
		size := unit * int(e.count)
		raw := p[8:12]
		if size > 4 {
			off := int(src.Uint32(p[8:12]))
			if off < 0 || off+size > len(data) {
				return nil, fmt.Errorf("TIFF tag %#x value out of range", e.tag)
			}
			raw = data[off : off+size]
		}
		e.data = reorder(raw[:size], e.typ, src)
		image0 = append(image0, e)
	}

	// Metadata entries take precedence over any the encoder wrote.
	seen := make(map[uint16]bool, len(meta0))
	for _, e := range meta0 {
		seen[e.tag] = true
	}
	for _, e := range image0 {
		if !seen[e.tag] {
			meta0 = append(meta0, e)
		}
	}

	// StripOffsets stays valid because layoutTIFF places the strip at 8.
	return layoutTIFF(data[8:ifdOff], meta0, exifIFD, gpsIFD), nil
}

func typeSize(typ uint16) int {
	switch typ {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	}
	return 0
}

// reorder copies a value of type typ from byte order src into order.
func reorder(raw []byte, typ uint16, src binary.ByteOrder) []byte {
	out := make([]byte, len(raw))
	switch typ {
	case typeShort:
		for i := 0; i+2 <= len(raw); i += 2 {
			order.PutUint16(out[i:], src.Uint16(raw[i:]))
		}
	case typeLong, typeRational:
		for i := 0; i+4 <= len(raw); i += 4 {
			order.PutUint32(out[i:], src.Uint32(raw[i:]))
		}
	default:
		copy(out, raw)
	}
	return out
}
