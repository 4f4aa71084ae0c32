package frontier

import (
	"reflect"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	info := URLInfo{
		URL:     "http://example.com/path",
		Key:     "example.com",
		CrawlID: "DEFAULT",
		Metadata: map[string][]string{
			"depth":    {"3"},
			"referrer": {"http://example.com/", "http://other/"},
		},
	}
	decoded, ok := DecodeURLInfo(EncodeURLInfo(info))
	if !ok {
		t.Fatalf("decode failed")
	}
	if !reflect.DeepEqual(info, decoded) {
		t.Fatalf("got %+v want %+v", decoded, info)
	}
}

func TestRecordNoMetadata(t *testing.T) {
	info := URLInfo{URL: "http://a/x"}
	decoded, ok := DecodeURLInfo(EncodeURLInfo(info))
	if !ok || decoded.URL != "http://a/x" || decoded.Metadata != nil {
		t.Fatalf("got %+v", decoded)
	}
}

func TestRecordChecksumRejectsCorruption(t *testing.T) {
	b := EncodeURLInfo(URLInfo{URL: "http://a/x", Key: "a"})
	b[2] ^= 0xFF
	if _, ok := DecodeURLInfo(b); ok {
		t.Fatalf("corrupted record must not decode")
	}
}

func TestRecordTruncated(t *testing.T) {
	b := EncodeURLInfo(URLInfo{URL: "http://a/x"})
	for i := 0; i < len(b); i++ {
		if _, ok := DecodeURLInfo(b[:i]); ok {
			t.Fatalf("truncated record of %d bytes decoded", i)
		}
	}
}

func TestRecordDeterministic(t *testing.T) {
	info := URLInfo{
		URL:      "http://a/x",
		Metadata: map[string][]string{"b": {"2"}, "a": {"1"}, "c": {"3"}},
	}
	first := EncodeURLInfo(info)
	for i := 0; i < 8; i++ {
		if string(EncodeURLInfo(info)) != string(first) {
			t.Fatalf("encoding must be deterministic")
		}
	}
}
