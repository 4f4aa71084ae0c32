package frontier

import (
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// URLInfo record:
//	urlLen(4B BE) | url | keyLen(4B) | key | crawlLen(4B) | crawlID |
//	numMeta(4B) | numMeta * ( kLen(4B) | k | numVals(4B) | numVals * ( vLen(4B) | v ) ) |
//	crc32c over everything before it
//
// Metadata keys are written in sorted order so encoding is deterministic.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func appendString(out []byte, s string) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	out = append(out, n[:]...)
	return append(out, s...)
}

// EncodeURLInfo serializes info for storage in the scheduling family.
func EncodeURLInfo(info URLInfo) []byte {
	out := make([]byte, 0, 64+len(info.URL)+len(info.Key)+len(info.CrawlID))
	out = appendString(out, info.URL)
	out = appendString(out, info.Key)
	out = appendString(out, info.CrawlID)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(info.Metadata)))
	out = append(out, n[:]...)

	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = appendString(out, k)
		vals := info.Metadata[k]
		binary.BigEndian.PutUint32(n[:], uint32(len(vals)))
		out = append(out, n[:]...)
		for _, v := range vals {
			out = appendString(out, v)
		}
	}

	crc := crc32.Update(0, castagnoli, out)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	return append(out, cb[:]...)
}

type recordReader struct {
	b   []byte
	pos int
	bad bool
}

func (r *recordReader) uint32() uint32 {
	if r.bad || r.pos+4 > len(r.b) {
		r.bad = true
		return 0
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v
}

func (r *recordReader) string() string {
	n := int(r.uint32())
	if r.bad || r.pos+n > len(r.b) {
		r.bad = true
		return ""
	}
	s := string(r.b[r.pos : r.pos+n])
	r.pos += n
	return s
}

// DecodeURLInfo deserializes a stored record, verifying its checksum.
func DecodeURLInfo(b []byte) (URLInfo, bool) {
	if len(b) < 4 {
		return URLInfo{}, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Update(0, castagnoli, body) != expect {
		return URLInfo{}, false
	}

	r := &recordReader{b: body}
	info := URLInfo{
		URL:     r.string(),
		Key:     r.string(),
		CrawlID: r.string(),
	}
	numMeta := int(r.uint32())
	if numMeta > 0 {
		info.Metadata = make(map[string][]string, numMeta)
		for i := 0; i < numMeta && !r.bad; i++ {
			k := r.string()
			numVals := int(r.uint32())
			if r.bad || numVals > len(body) {
				r.bad = true
				break
			}
			vals := make([]string, 0, numVals)
			for j := 0; j < numVals; j++ {
				vals = append(vals, r.string())
			}
			info.Metadata[k] = vals
		}
	}
	if r.bad || r.pos != len(body) {
		return URLInfo{}, false
	}
	return info, true
}
