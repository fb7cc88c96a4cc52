// Package analysis runs document summarization on a background goroutine and
// reports its progress as typed messages.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/llm"
	"github.com/spherical/doc-assistant/internal/pdf"
)

// channelBuffer sizes the message channel returned by Start.
const channelBuffer = 256

// State is the phase a run is in.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateSummarizing  State = "summarizing"
	StateSynthesizing State = "synthesizing"
	StateComplete     State = "complete"
	StateError        State = "error"
)

// Request describes one analysis run.
type Request struct {
	Source domain.Source
	Depth  domain.Depth
}

// Config holds orchestration settings.
type Config struct {
	// ChunkPages is the number of PDF pages per chunk
	ChunkPages int
}

// Orchestrator decides the chunking strategy and drives extraction and inference.
type Orchestrator struct {
	opener    domain.DocumentOpener
	extractor *pdf.Extractor
	generator domain.Generator
	cfg       Config
	logger    *domain.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opener domain.DocumentOpener, extractor *pdf.Extractor, generator domain.Generator, cfg Config, logger *domain.Logger) *Orchestrator {
	if cfg.ChunkPages <= 0 {
		cfg.ChunkPages = pdf.DefaultChunkPages
	}
	if logger == nil {
		logger = domain.DefaultLogger
	}
	return &Orchestrator{
		opener:    opener,
		extractor: extractor,
		generator: generator,
		cfg:       cfg,
		logger:    logger.WithOperation("analysis"),
	}
}

// Start runs the analysis on a new goroutine. The returned channel yields the
// run's messages in emission order, ends with exactly one domain.Complete and
// is then closed. The caller must drain it until Complete.
func (o *Orchestrator) Start(ctx context.Context, req Request) <-chan domain.Message {
	out := make(chan domain.Message, channelBuffer)
	go func() {
		defer close(out)
		o.Run(ctx, req, out)
	}()
	return out
}

// Run performs the analysis synchronously, sending messages to out. Complete
// is always the last message sent, whatever happens during the run.
func (o *Orchestrator) Run(ctx context.Context, req Request, out chan<- domain.Message) {
	r := &run{
		Orchestrator: o,
		out:          out,
		logger:       o.logger.WithRun(uuid.NewString()),
		state:        StateIdle,
	}

	var documentText string
	defer func() {
		if p := recover(); p != nil {
			r.fail(domain.NewError(domain.ErrorTypeExtraction, "analysis aborted", fmt.Errorf("panic: %v", p)))
			documentText = ""
		}
		r.out <- domain.Complete{DocumentText: documentText}
	}()

	r.logger.Info().
		Str("source", string(req.Source.Kind)).
		Str("depth", string(req.Depth)).
		Msg("Starting analysis")

	text, err := r.execute(ctx, req)
	if err != nil {
		r.fail(err)
		return
	}

	documentText = text
	r.transition(StateComplete)
}

// run holds the per-run state.
type run struct {
	*Orchestrator
	out    chan<- domain.Message
	logger *domain.Logger
	state  State
}

func (r *run) execute(ctx context.Context, req Request) (string, error) {
	src := req.Source
	if !src.HasContent() {
		return "", domain.ErrNoText
	}

	switch src.Kind {
	case domain.SourcePDF:
		if req.Depth == domain.DepthDeep {
			return r.deepScan(ctx, src.PDF)
		}
		return r.quickScan(ctx, src.PDF)
	case domain.SourceText:
		return r.summarizeText(ctx, "Processing pasted text...", src.Text)
	case domain.SourceImage:
		return r.summarizeText(ctx, "Analyzing image context...", src.Text)
	default:
		return "", domain.ValidationError(fmt.Sprintf("unsupported source kind %q", src.Kind), nil)
	}
}

// quickScan summarizes only the first chunk of the PDF, streaming the result.
func (r *run) quickScan(ctx context.Context, data []byte) (string, error) {
	r.transition(StateExtracting)
	r.emit(domain.Status{Text: "Performing Quick Scan..."})

	doc, err := r.opener.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	chunk := r.extractor.ExtractChunk(doc, 0, r.cfg.ChunkPages)
	r.emit(domain.ClearUI{})

	r.transition(StateSummarizing)
	if _, err := r.generator.Generate(ctx, domain.GenerateRequest{Text: chunk}, r.forward); err != nil {
		return "", err
	}
	return chunk, nil
}

// deepScan summarizes every chunk of the PDF in order, then streams a synthesis
// of the partial summaries.
func (r *run) deepScan(ctx context.Context, data []byte) (string, error) {
	r.transition(StateExtracting)

	doc, err := r.opener.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	total := doc.PageCount()
	if total == 0 {
		return "", domain.ExtractionError("PDF has no pages", nil)
	}

	size := r.cfg.ChunkPages
	chunks := make([]string, 0, (total+size-1)/size)
	partials := make([]string, 0, cap(chunks))

	for start := 0; start < total; start += size {
		end := min(start+size, total)
		r.transition(StateExtracting)
		r.emit(domain.Status{Text: fmt.Sprintf("Analyzing PDF pages %d to %d...", start+1, end)})

		chunk := r.extractor.ExtractChunk(doc, start, size)
		chunks = append(chunks, chunk)

		r.transition(StateSummarizing)
		partial, err := r.generator.Generate(ctx, domain.GenerateRequest{Text: chunk}, nil)
		if err != nil {
			return "", err
		}
		partials = append(partials, partial)

		r.emit(domain.Progress{Fraction: min(float64(end)/float64(total), 1.0)})
	}

	r.emit(domain.ClearUI{})

	r.transition(StateSynthesizing)
	synthesis := domain.GenerateRequest{
		Instruction: llm.SynthesisInstruction,
		Text:        strings.Join(partials, "\n"),
	}
	if _, err := r.generator.Generate(ctx, synthesis, r.forward); err != nil {
		return "", err
	}

	return strings.Join(chunks, " "), nil
}

// summarizeText handles pasted text and OCR output, which are never chunked.
func (r *run) summarizeText(ctx context.Context, status, text string) (string, error) {
	r.transition(StateExtracting)
	r.emit(domain.Status{Text: status})
	r.emit(domain.ClearUI{})

	r.transition(StateSummarizing)
	req := domain.GenerateRequest{Text: r.extractor.CapText(text)}
	if _, err := r.generator.Generate(ctx, req, r.forward); err != nil {
		return "", err
	}
	return text, nil
}

func (r *run) forward(token string) {
	r.emit(domain.Content{Token: token})
}

func (r *run) emit(msg domain.Message) {
	r.out <- msg
}

func (r *run) fail(err error) {
	r.logger.Error().Err(err).Str("state", string(r.state)).Msg("Analysis failed")
	r.transition(StateError)
	r.emit(domain.Error{Err: err})
}

func (r *run) transition(s State) {
	if r.state == s {
		return
	}
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(s)).Msg("State change")
	r.state = s
}
