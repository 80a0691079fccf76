package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/dispatcher"
	"github.com/xkilldash9x/taskpilot/internal/scheduler"
)

const readyPollInterval = 100 * time.Millisecond

// Tab is a live browser tab. It is the scheduler's target (navigation and
// readiness) and, through Page, the dispatcher's element tree.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     string
	logger *zap.Logger
}

var (
	_ scheduler.Target            = (*Tab)(nil)
	_ scheduler.ReadinessSignaler = (*Tab)(nil)
	_ dispatcher.Page             = (*Tab)(nil)
)

func newTab(ctx context.Context, cancel context.CancelFunc, id string, logger *zap.Logger) *Tab {
	return &Tab{
		ctx:    ctx,
		cancel: cancel,
		id:     id,
		logger: logger.With(zap.String("tab", id)),
	}
}

// Name is the tab's address on the channel.
func (t *Tab) Name() string { return "tab-" + t.id }

// Closed reports whether the tab's context is gone.
func (t *Tab) Closed() bool { return t.ctx.Err() != nil }

// Navigate loads url and waits for the load event.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to '%s': %w", url, err)
	}
	return nil
}

// Ready waits until the document has a body and readyState is complete.
func (t *Tab) Ready(ctx context.Context) error {
	opCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for body: %w", err)
	}

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		var complete bool
		if err := chromedp.Run(opCtx, chromedp.Evaluate(`document.readyState === "complete"`, &complete)); err != nil {
			return fmt.Errorf("reading readyState: %w", err)
		}
		if complete {
			return nil
		}
		select {
		case <-ticker.C:
		case <-opCtx.Done():
			return opCtx.Err()
		}
	}
}

// Close closes the tab.
func (t *Tab) Close(ctx context.Context) error {
	defer t.cancel()
	if t.Closed() {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	opCtx, cancelOp := CombineContext(t.ctx, closeCtx)
	defer cancelOp()
	return chromedp.Cancel(opCtx)
}

// -- dispatcher.Page --

func (t *Tab) SetValue(ctx context.Context, selector, value string) error {
	_, err := t.eval(ctx, fmt.Sprintf(jsSetValue, jsonEncode(selector), jsonEncode(value)))
	return err
}

func (t *Tab) Click(ctx context.Context, selector string) error {
	_, err := t.eval(ctx, fmt.Sprintf(jsClick, jsonEncode(selector)))
	return err
}

func (t *Tab) Read(ctx context.Context, selector, attribute string) (string, error) {
	return t.eval(ctx, fmt.Sprintf(jsRead, jsonEncode(selector), jsonEncode(attribute)))
}

func (t *Tab) SelectByText(ctx context.Context, selector, text string) error {
	_, err := t.eval(ctx, fmt.Sprintf(jsSelectByText, jsonEncode(selector), jsonEncode(text)))
	return err
}

// eval runs one action script and maps its status to the dispatcher's errors.
// Exceptions thrown by the page (e.g. an invalid selector) come back as
// *runtime.ExceptionDetails errors.
func (t *Tab) eval(ctx context.Context, script string) (string, error) {
	opCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()

	var res actionResult
	err := chromedp.Run(opCtx,
		chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithSilent(true)
		}),
	)
	if err != nil {
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return "", fmt.Errorf("page script threw: %s", exc.Error())
		}
		return "", err
	}

	switch res.Status {
	case statusOK:
		return res.Value, nil
	case statusNotFound:
		return "", dispatcher.ErrElementNotFound
	case statusNoDropdown:
		return "", dispatcher.ErrDropdownNotFound
	case statusNoOption:
		return "", dispatcher.ErrOptionNotFound
	default:
		t.logger.Warn("Unexpected action script status.", zap.String("status", res.Status))
		return "", fmt.Errorf("unexpected action script status '%s'", res.Status)
	}
}
