// Package targeting builds the page-level key/values passed to
// googletag.pubads().setTargeting.
package targeting

import (
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/avct/uasurfer"
	"github.com/buger/jsonparser"

	"github.com/patrickwarner/adslotgate/internal/geoip"
)

// ScriptType marks inline JSON blocks carrying page targeting:
// <script type="adtargeting/json">{"make":"bmw","model":["x1","x3"]}</script>
const ScriptType = "adtargeting/json"

// Keys derived from the request.
const (
	KeyDevice  = "device"
	KeyCountry = "country"
)

// KeyValues maps a targeting key to its values.
type KeyValues map[string][]string

// Merge returns a new set with other's keys overriding kv's.
func (kv KeyValues) Merge(other KeyValues) KeyValues {
	out := make(KeyValues, len(kv)+len(other))
	for k, v := range kv {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order so rendered output is stable.
func (kv KeyValues) Keys() []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the first value of key, or "".
func (kv KeyValues) First(key string) string {
	if vs := kv[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// FromDocument collects targeting from every adtargeting/json block in doc.
// Later blocks override earlier ones. Malformed blocks are skipped; nested
// objects and nulls are ignored.
func FromDocument(doc *goquery.Document) KeyValues {
	kv := KeyValues{}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if typ, _ := s.Attr("type"); !strings.EqualFold(strings.TrimSpace(typ), ScriptType) {
			return
		}
		for k, v := range parseBlock([]byte(s.Text())) {
			kv[k] = v
		}
	})
	return kv
}

func parseBlock(data []byte) KeyValues {
	kv := KeyValues{}
	err := jsonparser.ObjectEach(data, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		k := string(key)
		if k == "" {
			return nil
		}
		if typ == jsonparser.Array {
			var vals []string
			_, _ = jsonparser.ArrayEach(value, func(v []byte, t jsonparser.ValueType, _ int, err error) {
				if err != nil {
					return
				}
				if s, ok := scalar(v, t); ok {
					vals = append(vals, s)
				}
			})
			if vals != nil {
				kv[k] = vals
			}
			return nil
		}
		if s, ok := scalar(value, typ); ok {
			kv[k] = []string{s}
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return kv
}

func scalar(v []byte, t jsonparser.ValueType) (string, bool) {
	switch t {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		return s, err == nil
	case jsonparser.Number, jsonparser.Boolean:
		return string(v), true
	default:
		return "", false
	}
}

// FromRequest derives device and country targeting for the visitor.
// geo may be nil.
func FromRequest(geo *geoip.GeoIP, r *http.Request) KeyValues {
	kv := KeyValues{}
	if ua := r.UserAgent(); ua != "" {
		kv[KeyDevice] = []string{DeviceType(ua)}
	}
	if country := geo.Country(ClientIP(r)); country != "" {
		kv[KeyCountry] = []string{country}
	}
	return kv
}

// DeviceType maps a User-Agent to desktop, mobile, tablet or other.
func DeviceType(userAgent string) string {
	switch uasurfer.Parse(userAgent).DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// ClientIP returns the first X-Forwarded-For address, falling back to the
// connection's remote address.
func ClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
