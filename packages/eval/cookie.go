package eval

import "strings"

// Cookie accumulates name=value pairs into a single Cookie header
// value, percent-encoding both sides.
type Cookie struct {
	buf strings.Builder
}

// Add appends one pair, separated from previous pairs by "; ".
func (c *Cookie) Add(name, value string) {
	if c.buf.Len() > 0 {
		c.buf.WriteString("; ")
	}
	c.buf.WriteString(percentEncode(name))
	c.buf.WriteByte('=')
	c.buf.WriteString(percentEncode(value))
}

// String returns the assembled header value.
func (c *Cookie) String() string {
	return c.buf.String()
}

const upperhex = "0123456789ABCDEF"

// percentEncode escapes every byte outside the RFC 3986 unreserved
// set. url.QueryEscape is close but writes ' ' as '+' and leaves
// sub-delims like '!' bare; cookie pairs need the strict form.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
