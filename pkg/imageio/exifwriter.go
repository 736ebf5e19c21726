package imageio

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bstardust/photokit/pkg/tags"
)

// TIFF field types
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// Tag IDs written by BuildExif
const (
	tagMake                     = 0x010F
	tagModel                    = 0x0110
	tagOrientation              = 0x0112
	tagExifIFD                  = 0x8769
	tagGPSIFD                   = 0x8825
	tagExposureTime             = 0x829A
	tagFNumber                  = 0x829D
	tagISOSpeedRatings          = 0x8827
	tagSensitivityType          = 0x8830
	tagRecommendedExposureIndex = 0x8832
	tagDateTimeOriginal         = 0x9003
	tagFocalLength              = 0x920A
	tagLensModel                = 0xA434
	tagGPSVersionID             = 0x0000
	tagGPSLatitudeRef           = 0x0001
	tagGPSLatitude              = 0x0002
	tagGPSLongitudeRef          = 0x0003
	tagGPSLongitude             = 0x0004
	tagGPSAltitudeRef           = 0x0005
	tagGPSAltitude              = 0x0006
	tagGPSTimeStamp             = 0x0007
	tagGPSDateStamp             = 0x001D
)

var order = binary.BigEndian

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

type ifd []ifdEntry

func (d ifd) size() int {
	n := 2 + 12*len(d) + 4
	for _, e := range d {
		if len(e.data) > 4 {
			n += len(e.data) + len(e.data)%2
		}
	}
	return n
}

// BuildExif encodes the recognised keys of props as a big-endian TIFF
// block suitable for a JPEG APP1 segment or a PNG eXIf chunk. It returns nil
// when props carries nothing that can be written.
func BuildExif(props tags.Dict) []byte {
	ifd0, exifIFD, gpsIFD := metadataIFDs(props)
	if len(ifd0) == 0 && len(exifIFD) == 0 && len(gpsIFD) == 0 {
		return nil
	}
	return layoutTIFF(nil, ifd0, exifIFD, gpsIFD)
}

// metadataIFDs converts props into IFD0, Exif and GPS entries. Sub-IFD
// pointers are added by layoutTIFF.
func metadataIFDs(props tags.Dict) (ifd0, exifIFD, gpsIFD ifd) {
	tiffDict, _ := props.Section(tags.TIFFSection)
	exifDict, _ := props.Section(tags.ExifSection)
	gpsDict, _ := props.Section(tags.GPSSection)

	ifd0 = appendASCII(ifd0, tagMake, tiffDict, tags.TIFFMake)
	ifd0 = appendASCII(ifd0, tagModel, tiffDict, tags.TIFFModel)
	if o, ok := props.Int(tags.Orientation); ok && o >= 1 && o <= 8 {
		ifd0 = append(ifd0, shortEntry(tagOrientation, uint16(o)))
	} else if o, ok := tiffDict.Int(tags.Orientation); ok && o >= 1 && o <= 8 {
		ifd0 = append(ifd0, shortEntry(tagOrientation, uint16(o)))
	}

	exifIFD = appendRational(exifIFD, tagExposureTime, exifDict, tags.ExifExposureTime)
	exifIFD = appendRational(exifIFD, tagFNumber, exifDict, tags.ExifFNumber)
	exifIFD = appendISO(exifIFD, exifDict)
	exifIFD = appendASCII(exifIFD, tagDateTimeOriginal, exifDict, tags.ExifDateTimeOriginal)
	exifIFD = appendRational(exifIFD, tagFocalLength, exifDict, tags.ExifFocalLength)
	exifIFD = appendASCII(exifIFD, tagLensModel, exifDict, tags.ExifLensModel)

	gpsIFD = appendASCII(gpsIFD, tagGPSLatitudeRef, gpsDict, tags.GPSLatitudeRef)
	if v, ok := gpsDict.Float(tags.GPSLatitude); ok && finite(v) {
		gpsIFD = append(gpsIFD, rationalsEntry(tagGPSLatitude, dms(v)...))
	}
	gpsIFD = appendASCII(gpsIFD, tagGPSLongitudeRef, gpsDict, tags.GPSLongitudeRef)
	if v, ok := gpsDict.Float(tags.GPSLongitude); ok && finite(v) {
		gpsIFD = append(gpsIFD, rationalsEntry(tagGPSLongitude, dms(v)...))
	}
	if ref, ok := gpsDict.Int(tags.GPSAltitudeRef); ok && (ref == 0 || ref == 1) {
		gpsIFD = append(gpsIFD, ifdEntry{tag: tagGPSAltitudeRef, typ: typeByte, count: 1, data: []byte{byte(ref)}})
	}
	if v, ok := gpsDict.Float(tags.GPSAltitude); ok && finite(v) {
		gpsIFD = append(gpsIFD, rationalsEntry(tagGPSAltitude, math.Abs(v)))
	}
	if s, ok := gpsDict.String(tags.GPSTimeStamp); ok {
		if hms, ok := parseClock(s); ok {
			gpsIFD = append(gpsIFD, rationalsEntry(tagGPSTimeStamp, hms...))
		}
	}
	gpsIFD = appendASCII(gpsIFD, tagGPSDateStamp, gpsDict, tags.GPSDateStamp)
	if len(gpsIFD) > 0 {
		gpsIFD = append(gpsIFD, ifdEntry{tag: tagGPSVersionID, typ: typeByte, count: 4, data: []byte{2, 3, 0, 0}})
	}
	return ifd0, exifIFD, gpsIFD
}

// layoutTIFF writes a big-endian TIFF stream: header, data (placed at
// offset 8), IFD0 and the optional Exif and GPS IFDs.
func layoutTIFF(data []byte, ifd0, exifIFD, gpsIFD ifd) []byte {
	// Pointer values are patched once the layout is known.
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longEntry(tagExifIFD, 0))
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(tagGPSIFD, 0))
	}
	for _, d := range []ifd{ifd0, exifIFD, gpsIFD} {
		sort.Slice(d, func(i, j int) bool { return d[i].tag < d[j].tag })
	}

	// IFDs start on a word boundary.
	ifd0Off := 8 + len(data) + len(data)%2
	exifOff := ifd0Off + ifd0.size()
	gpsOff := exifOff
	if len(exifIFD) > 0 {
		gpsOff += exifIFD.size()
	}
	for i := range ifd0 {
		switch ifd0[i].tag {
		case tagExifIFD:
			order.PutUint32(ifd0[i].data, uint32(exifOff))
		case tagGPSIFD:
			order.PutUint32(ifd0[i].data, uint32(gpsOff))
		}
	}

	buf := make([]byte, 0, gpsOff+gpsIFD.size())
	buf = append(buf, 'M', 'M', 0, 42)
	buf = order.AppendUint32(buf, uint32(ifd0Off))
	buf = append(buf, data...)
	if len(data)%2 == 1 {
		buf = append(buf, 0)
	}
	buf = ifd0.appendTo(buf, ifd0Off)
	if len(exifIFD) > 0 {
		buf = exifIFD.appendTo(buf, exifOff)
	}
	if len(gpsIFD) > 0 {
		buf = gpsIFD.appendTo(buf, gpsOff)
	}
	return buf
}

// appendTo serializes d, which starts at offset base of the TIFF block.
func (d ifd) appendTo(buf []byte, base int) []byte {
	dataOff := base + 2 + 12*len(d) + 4
	var extra []byte

	buf = order.AppendUint16(buf, uint16(len(d)))
	for _, e := range d {
		buf = order.AppendUint16(buf, e.tag)
		buf = order.AppendUint16(buf, e.typ)
		buf = order.AppendUint32(buf, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			buf = append(buf, inline[:]...)
			continue
		}
		buf = order.AppendUint32(buf, uint32(dataOff+len(extra)))
		extra = append(extra, e.data...)
		if len(e.data)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	buf = order.AppendUint32(buf, 0)
	return append(buf, extra...)
}

func appendASCII(d ifd, tag uint16, dict tags.Dict, key string) ifd {
	s, ok := dict.String(key)
	if !ok || s == "" {
		return d
	}
	data := append([]byte(s), 0)
	return append(d, ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data})
}

func appendRational(d ifd, tag uint16, dict tags.Dict, key string) ifd {
	v, ok := dict.Float(key)
	if !ok || v < 0 || !finite(v) {
		return d
	}
	return append(d, rationalsEntry(tag, v))
}

// appendISO writes ISOSpeedRatings as SHORTs. Sensitivities above 65535
// are stored as 65535 with the real value in RecommendedExposureIndex and
// SensitivityType 2, following EXIF 2.3. Non-positive values are dropped.
func appendISO(d ifd, dict tags.Dict) ifd {
	iso, ok := dict.Ints(tags.ExifISOSpeedRatings)
	if !ok {
		v, ok := dict.Int(tags.ExifISOSpeedRatings)
		if !ok {
			return d
		}
		iso = []int{v}
	}

	var shorts []int
	overflow := 0
	for _, v := range iso {
		if v <= 0 {
			continue
		}
		if v > math.MaxUint16 {
			if overflow == 0 {
				overflow = v
			}
			v = math.MaxUint16
		}
		shorts = append(shorts, v)
	}
	if len(shorts) == 0 {
		return d
	}
	d = append(d, shortsEntry(tagISOSpeedRatings, shorts))
	if overflow > 0 && int64(overflow) <= math.MaxUint32 {
		d = append(d,
			shortEntry(tagSensitivityType, 2),
			longEntry(tagRecommendedExposureIndex, uint32(overflow)))
	}
	return d
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	return ifdEntry{tag: tag, typ: typeShort, count: 1, data: order.AppendUint16(nil, v)}
}

func shortsEntry(tag uint16, vs []int) ifdEntry {
	var data []byte
	for _, v := range vs {
		data = order.AppendUint16(data, uint16(v))
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vs)), data: data}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: order.AppendUint32(nil, v)}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func rationalsEntry(tag uint16, vs ...float64) ifdEntry {
	var data []byte
	for _, v := range vs {
		num, den := rational(v)
		data = order.AppendUint32(data, num)
		data = order.AppendUint32(data, den)
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(vs)), data: data}
}

// rational approximates a non-negative v as num/den. Sub-second values that
// are exact reciprocals keep the 1/N form.
func rational(v float64) (uint32, uint32) {
	v = math.Abs(v)
	if v == math.Trunc(v) && v <= math.MaxUint32 {
		return uint32(v), 1
	}
	if v < 1 {
		inv := 1 / v
		if r := math.Round(inv); math.Abs(inv-r) < 1e-6 && r <= math.MaxUint32 {
			return 1, uint32(r)
		}
	}
	const den = 10000
	num := math.Round(v * den)
	if num > math.MaxUint32 {
		return uint32(math.Round(v)), 1
	}
	n, d := uint32(num), uint32(den)
	g := gcd(n, d)
	return n / g, d / g
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// dms splits decimal degrees into whole degrees, whole minutes and seconds.
func dms(deg float64) []float64 {
	deg = math.Abs(deg)
	d := math.Floor(deg)
	minutes := (deg - d) * 60
	m := math.Floor(minutes)
	s := (minutes - m) * 60
	return []float64{d, m, s}
}

// parseClock splits "15:04:05" (seconds may be fractional) into three numbers.
func parseClock(s string) ([]float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return nil, false
	}
	out := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
