package httpclient

// Header is one resolved header field.
type Header struct {
	Name  string
	Value string
}

// Request is a fully resolved request ready to send.
type Request struct {
	Method  string
	URI     string
	Headers []Header
	Body    string
}
