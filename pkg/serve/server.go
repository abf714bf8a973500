// Package serve exposes the scanner over an NDJSON stdio protocol so
// non-Go drivers (crawlers, orchestration scripts) can stream responses in
// and technology matches out of one long-lived process, skipping per-call
// startup and ruleset loading.
package serve

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	wap "github.com/blackarrowsec/wap"
)

// Version is the server protocol version.
const Version = "1.0.0"

// Server manages the streaming scanner.
type Server struct {
	scanner *wap.Scanner
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewServer creates a new streaming server around a shared scanner.
func NewServer(scanner *wap.Scanner, in io.Reader, out io.Writer) *Server {
	return &Server{
		scanner: scanner,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// Run starts the server main loop. It returns when the input stream closes,
// a "close" request arrives or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain pending requests before handling EOF so responses to
			// requests decoded just before stream close are not lost.
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and reports whether the server
// should exit.
func (s *Server) processRequest(req Request) bool {
	switch req.Type {
	case "fingerprint":
		s.handleFingerprint(req.Payload)
	case "fingerprint_batch":
		s.handleFingerprintBatch(req.Payload)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{
		Version:      Version,
		Technologies: s.scanner.TechnologyCount(),
	})
	s.encoder.Encode(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

func (s *Server) handleFingerprint(payload json.RawMessage) {
	var p FingerprintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("fingerprint", err.Error())
		return
	}

	result := s.fingerprint(p)
	data, _ := json.Marshal(result)
	s.encoder.Encode(Response{
		Success: true,
		Type:    "fingerprint",
		Data:    data,
	})
}

func (s *Server) handleFingerprintBatch(payload json.RawMessage) {
	var p FingerprintBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("fingerprint_batch", err.Error())
		return
	}

	results := make([]FingerprintResult, 0, len(p.Items))
	for _, item := range p.Items {
		results = append(results, s.fingerprint(item))
	}

	data, _ := json.Marshal(results)
	s.encoder.Encode(Response{
		Success: true,
		Type:    "fingerprint_batch",
		Data:    data,
	})
}

func (s *Server) fingerprint(p FingerprintPayload) FingerprintResult {
	body := []byte(p.Body)
	if p.BodyB64 != "" {
		if decoded, err := base64.StdEncoding.DecodeString(p.BodyB64); err == nil {
			body = decoded
		}
	}

	resp := &wap.Response{
		URL:        p.URL,
		StatusCode: p.StatusCode,
		Headers:    http.Header(p.Headers),
		Cookies:    p.Cookies,
		Body:       body,
	}

	matches := s.scanner.Fingerprint(resp)
	if matches == nil {
		matches = []wap.TechMatch{}
	}
	return FingerprintResult{URL: p.URL, Technologies: matches}
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
