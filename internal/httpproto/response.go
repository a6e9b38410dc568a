package httpproto

import (
	"fmt"
	"io"

	"github.com/oskar456/rtp2httpd/internal/netio"
)

// Status identifies one of the gateway's fixed HTTP replies.
type Status int

const (
	Status200 Status = iota
	Status400
	Status404
	Status501
	Status503
)

func (s Status) statusLine() string {
	switch s {
	case Status200:
		return "HTTP/1.1 200 OK\r\n"
	case Status400:
		return "HTTP/1.1 400 Bad Request\r\n"
	case Status404:
		return "HTTP/1.1 404 Not Found\r\n"
	case Status501:
		return "HTTP/1.1 501 Not Implemented\r\n"
	case Status503:
		return "HTTP/1.1 503 Service Unavailable\r\n"
	default:
		return "HTTP/1.1 500 Internal Server Error\r\n"
	}
}

// body returns the fixed HTML document for non-2xx statuses, naming the
// given server identifier (e.g. "rtp2httpd/2.0").
func (s Status) body(server string) string {
	switch s {
	case Status400:
		return htmlDoc("400 Bad Request",
			"Your browser sent a request that this server could not understand.", server)
	case Status404:
		return htmlDoc("404 Service not found!",
			"Sorry, this service was not configured.", server)
	case Status501:
		return htmlDoc("501 Method Not Implemented",
			"Sorry, only GET is supported.", server)
	case Status503:
		return htmlDoc("503 Service Unavailable",
			"Sorry, there are too many connections at this time. Try again later.", server)
	default:
		return ""
	}
}

func htmlDoc(title, message, server string) string {
	return fmt.Sprintf(
		"<!DOCTYPE HTML PUBLIC \"-//IETF//DTD HTML 2.0//EN\">\r\n"+
			"<html><head>\r\n<title>%s</title>\r\n</head><body>\r\n"+
			"<h1>%s</h1>\r\n<p>%s</p>\r\n<hr>\r\n"+
			"<address>%s</address>\r\n</body></html>\r\n",
		title, title, message, server)
}

// WriteStatus writes a status reply to w. When sendHeaders is false (the
// HTTP/0.9-style request form), only the body is written: no status
// line, no headers. For Status200 the body is omitted entirely — the
// caller streams the relayed payload itself.
func WriteStatus(w io.Writer, status Status, sendHeaders bool, server string) error {
	if sendHeaders {
		if err := netio.WriteAll(w, []byte(status.statusLine())); err != nil {
			return err
		}
		contentType := "Content-Type: text/html\r\n"
		if status == Status200 {
			contentType = "Content-Type: application/octet-stream\r\n"
		}
		if err := netio.WriteAll(w, []byte(contentType)); err != nil {
			return err
		}
		header := fmt.Sprintf("Server: %s\r\n\r\n", server)
		if err := netio.WriteAll(w, []byte(header)); err != nil {
			return err
		}
	}

	if status == Status200 {
		return nil
	}
	return netio.WriteAll(w, []byte(status.body(server)))
}
