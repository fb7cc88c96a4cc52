package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; completion servers may send long final frames with timings.
const maxLineSize = 1024 * 1024

// StreamParser handles parsing of Server-Sent Events (SSE) streams
type StreamParser struct {
	scanner  *bufio.Scanner
	finished bool
}

// NewStreamParser creates a new stream parser
func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamParser{scanner: scanner}
}

// StreamChunk represents a single chunk from the stream
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next reads the next chunk from the stream
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			p.finished = true
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// Skip keep-alives and malformed frames
			continue
		}

		if resp.Error != nil {
			return nil, resp.Error
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			content := choice.Text
			if content == "" {
				content = choice.Delta.Content
			}
			if choice.FinishReason != "" {
				p.finished = true
			}
			return &StreamChunk{
				Content:      content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	// EOF without [DONE] or a finish reason means the server went away mid-generation.
	if !p.finished {
		return nil, io.ErrUnexpectedEOF
	}
	return &StreamChunk{Done: true}, nil
}
