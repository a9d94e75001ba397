package ipranges

import (
	"bufio"
	"bytes"
	"fmt"
	"net/netip"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseCloudFront extracts the CLOUDFRONT prefixes (IPv4 and IPv6) from the
// AWS ip-ranges.json document.
func ParseCloudFront(body []byte) ([]netip.Prefix, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}

	var out []netip.Prefix
	for _, q := range []string{
		`prefixes.#(service=="CLOUDFRONT")#.ip_prefix`,
		`ipv6_prefixes.#(service=="CLOUDFRONT")#.ipv6_prefix`,
	} {
		for _, v := range gjson.GetBytes(body, q).Array() {
			p, err := netip.ParsePrefix(v.String())
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			out = append(out, p.Masked())
		}
	}
	return out, nil
}

// ParseList parses a newline-separated list of CIDRs. Blank lines and
// lines starting with # are skipped.
func ParseList(body []byte) ([]netip.Prefix, error) {
	var out []netip.Prefix
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := netip.ParsePrefix(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		out = append(out, p.Masked())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Render produces the nginx include for the given prefixes, deduplicated
// and kept in first-seen order.
func Render(prefixes []netip.Prefix) []byte {
	var buf bytes.Buffer
	seen := make(map[netip.Prefix]struct{}, len(prefixes))
	for _, p := range prefixes {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		fmt.Fprintf(&buf, "set_real_ip_from %s;\n", p)
	}
	return buf.Bytes()
}
