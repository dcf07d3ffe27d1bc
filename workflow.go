package main

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// WorkflowState is a stage of transcript acquisition on a page
type WorkflowState int

const (
	StateIdle WorkflowState = iota
	StateExpandingDescription
	StateOpeningTranscriptPanel
	StateWaitingForContent
	StateExtractingText
	StateDone
	StateFailed
)

func (s WorkflowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpandingDescription:
		return "expanding description"
	case StateOpeningTranscriptPanel:
		return "opening transcript panel"
	case StateWaitingForContent:
		return "waiting for content"
	case StateExtractingText:
		return "extracting text"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Workflow drives a page from a collapsed description to an extracted
// transcript, one probe-and-act per step.
type Workflow struct {
	page     *Page
	settings WorkflowSettings
	detect   func(string) string
}

// NewWorkflow creates a workflow bound to one page
func NewWorkflow(page *Page, settings WorkflowSettings) *Workflow {
	return &Workflow{
		page:     page,
		settings: settings.withDefaults(),
		detect:   detectLanguage,
	}
}

// workflowRun is the per-invocation state; nothing survives between runs.
type workflowRun struct {
	videoID   string
	state     WorkflowState
	actions   int
	lastCause error
	text      string
}

// Run acquires the transcript of videoID from the page. Each call starts
// from Idle.
func (w *Workflow) Run(ctx context.Context, videoID string) (*TranscriptResult, error) {
	if w.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.settings.Timeout)
		defer cancel()
	}

	if w.page.Count(watchContainers) == 0 {
		return nil, fmt.Errorf("%w: no watch page container on %s", ErrTargetNotFound, w.page.URL())
	}

	run := &workflowRun{videoID: videoID, state: StateIdle}
	debugLog("workflow %s: %s -> %s", videoID, run.state, StateExpandingDescription)
	run.state = StateExpandingDescription

	for step := 1; step <= w.settings.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, w.contextErr(err)
		}

		debugLog("workflow %s: step %d/%d (%s)", videoID, step, w.settings.MaxSteps, run.state)

		next, err := w.step(ctx, run)
		if err != nil {
			run.state = StateFailed
			return nil, err
		}
		if run.state == StateDone {
			return w.result(run), nil
		}

		if err := w.pause(ctx, next); err != nil {
			return nil, w.contextErr(err)
		}
	}

	stuck := run.state
	run.state = StateFailed
	cause := run.lastCause
	if cause == nil {
		cause = fmt.Errorf("%w: no progress after last action", ErrTargetNotFound)
	}
	return nil, fmt.Errorf("%w: step budget of %d exhausted while %s: %w",
		ErrTimeout, w.settings.MaxSteps, stuck, cause)
}

// pauseKind tells pause what the step is waiting for
type pauseKind int

const (
	pauseRetry pauseKind = iota
	pauseAfterExpand
	pauseAfterTranscriptClick
)

// step performs one probe-and-act. Transitions that need no action fall
// through to the next state within the same step.
func (w *Workflow) step(ctx context.Context, run *workflowRun) (pauseKind, error) {
	for {
		switch run.state {
		case StateExpandingDescription:
			sel, c, ok := w.page.Probe(expandControls)
			if ok && !w.actioned(sel) {
				debugLog("clicking expand control %s", c.Selector)
				if err := w.click(ctx, run, sel); err != nil {
					return pauseRetry, err
				}
				run.state = StateOpeningTranscriptPanel
				return pauseAfterExpand, nil
			}
			if ok || w.transcriptReachable() {
				run.state = StateOpeningTranscriptPanel
				continue
			}
			run.lastCause = fmt.Errorf("%w: description expand control", ErrTargetNotFound)
			return pauseRetry, nil

		case StateOpeningTranscriptPanel:
			if _, _, ok := w.page.Probe(transcriptContainers); ok {
				run.state = StateWaitingForContent
				continue
			}
			sel, c, ok := w.page.Probe(transcriptControls)
			if ok && !w.actioned(sel) {
				debugLog("clicking transcript control %s", c.Selector)
				if err := w.click(ctx, run, sel); err != nil {
					return pauseRetry, err
				}
				run.state = StateWaitingForContent
				return pauseAfterTranscriptClick, nil
			}
			if ok {
				run.state = StateWaitingForContent
				continue
			}
			run.lastCause = fmt.Errorf("%w: show transcript control", ErrTargetNotFound)
			return pauseRetry, nil

		case StateWaitingForContent:
			if _, _, ok := w.page.Probe(transcriptContainers); ok {
				run.state = StateExtractingText
				continue
			}
			run.lastCause = fmt.Errorf("%w: transcript container", ErrTargetNotFound)
			return pauseRetry, nil

		case StateExtractingText:
			text := CleanTranscript(w.segments())
			if utf8.RuneCountInString(text) > w.settings.MinLength {
				run.text = text
				run.state = StateDone
				return pauseRetry, nil
			}
			run.lastCause = fmt.Errorf("%w (%d characters)", ErrEmptyTranscript, utf8.RuneCountInString(text))
			return pauseRetry, nil

		default:
			return pauseRetry, fmt.Errorf("workflow cannot step from state %s", run.state)
		}
	}
}

// pause waits before the next step. After an action it returns as soon as
// the page shows the expected effect; the configured delay is only an upper bound.
func (w *Workflow) pause(ctx context.Context, kind pauseKind) error {
	var (
		limit time.Duration
		ready func() bool
	)
	switch kind {
	case pauseAfterExpand:
		limit, ready = w.settings.ExpandDelay, w.transcriptReachable
	case pauseAfterTranscriptClick:
		limit, ready = w.settings.PanelDelay, w.segmentsPresent
	default:
		return sleepCtx(ctx, w.settings.RetryDelay)
	}
	if limit <= 0 {
		return ctx.Err()
	}

	err := WaitFor(ctx, w.settings.PollInterval, limit, ready)
	if errors.Is(err, ErrTimeout) {
		return nil
	}
	return err
}

func (w *Workflow) click(ctx context.Context, run *workflowRun, sel *goquery.Selection) error {
	run.actions++
	if err := w.page.Click(ctx, sel); err != nil {
		return fmt.Errorf("clicking control while %s: %w", run.state, err)
	}
	return nil
}

func (w *Workflow) actioned(sel *goquery.Selection) bool {
	done := false
	w.page.Query(func(*goquery.Selection) {
		done = isActioned(sel)
	})
	return done
}

func (w *Workflow) transcriptReachable() bool {
	if _, _, ok := w.page.Probe(transcriptControls); ok {
		return true
	}
	_, _, ok := w.page.Probe(transcriptContainers)
	return ok
}

func (w *Workflow) segmentsPresent() bool {
	return len(w.segments()) > 0
}

// segments collects raw segment text from the first transcript container
// that holds any.
func (w *Workflow) segments() []string {
	var out []string
	w.page.Query(func(root *goquery.Selection) {
		for _, c := range transcriptContainers {
			root.Find(c.Selector).EachWithBreak(func(_ int, container *goquery.Selection) bool {
				container.Find(segmentSelector).Each(func(_ int, seg *goquery.Selection) {
					out = append(out, seg.Text())
				})
				return len(out) == 0
			})
			if len(out) > 0 {
				return
			}
		}
	})
	return out
}

func (w *Workflow) result(run *workflowRun) *TranscriptResult {
	source := SourceDOM
	if run.actions > 0 {
		source = SourceUIAutomation
	}
	res := &TranscriptResult{
		VideoID:    run.videoID,
		Transcript: run.text,
		Timestamp:  time.Now().UTC(),
		Source:     source,
	}
	if w.detect != nil {
		res.Language = w.detect(run.text)
	}
	return res
}

func (w *Workflow) contextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: workflow exceeded %s", ErrTimeout, w.settings.Timeout)
	}
	return err
}
