package dispatcher_test

import (
	"context"
	"errors"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/browser/static"
	"github.com/xkilldash9x/taskpilot/internal/dispatcher"
	"github.com/xkilldash9x/taskpilot/internal/mocks"
)

const page = `<html><body>
  <p id="greeting">Hello, world</p>
  <input id="email" value="old@example.com">
  <a id="docs" href="/docs">Docs</a>
  <button id="submit">Submit</button>
  <select id="size">
    <option value="s">Small</option>
    <option value="m"> Medium </option>
  </select>
</body></html>`

func newStaticDispatcher(t *testing.T) (*dispatcher.Dispatcher, *static.Document) {
	t.Helper()
	doc := static.NewDocument("page", nil, zap.NewNop())
	require.NoError(t, doc.Load(page, "https://example.com/"))
	d, err := dispatcher.New(doc, zap.NewNop())
	require.NoError(t, err)
	return d, doc
}

func TestNew_RequiresPage(t *testing.T) {
	_, err := dispatcher.New(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name       string
		task       schemas.TaskDescriptor
		wantStatus schemas.Status
		wantResult interface{}
		wantReason string
	}{
		{
			name:       "update",
			task:       schemas.TaskDescriptor{Action: schemas.ActionUpdate, Selector: "#email", Value: "new@example.com"},
			wantStatus: schemas.StatusSuccess,
			wantResult: "Updated element #email",
		},
		{
			name:       "update missing element",
			task:       schemas.TaskDescriptor{Action: schemas.ActionUpdate, Selector: "#nope", Value: "x"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonElementNotFound,
		},
		{
			name:       "click",
			task:       schemas.TaskDescriptor{Action: schemas.ActionClick, Selector: "#submit"},
			wantStatus: schemas.StatusSuccess,
			wantResult: "Clicked element #submit",
		},
		{
			name:       "click missing element",
			task:       schemas.TaskDescriptor{Action: schemas.ActionClick, Selector: "#nope"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonElementNotFound,
		},
		{
			name:       "scrape defaults to text",
			task:       schemas.TaskDescriptor{Action: schemas.ActionScrape, Selector: "#greeting"},
			wantStatus: schemas.StatusSuccess,
			wantResult: schemas.ScrapeResult{Selector: "#greeting", Value: "Hello, world"},
		},
		{
			name:       "scrape value",
			task:       schemas.TaskDescriptor{Action: schemas.ActionScrape, Selector: "#email", ScrapeAttribute: "value"},
			wantStatus: schemas.StatusSuccess,
			wantResult: schemas.ScrapeResult{Selector: "#email", Value: "old@example.com"},
		},
		{
			name:       "scrape href",
			task:       schemas.TaskDescriptor{Action: schemas.ActionScrape, Selector: "#docs", ScrapeAttribute: "href"},
			wantStatus: schemas.StatusSuccess,
			wantResult: schemas.ScrapeResult{Selector: "#docs", Value: "https://example.com/docs"},
		},
		{
			name:       "scrape missing element",
			task:       schemas.TaskDescriptor{Action: schemas.ActionScrape, Selector: "#nope"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonElementNotFound,
		},
		{
			name:       "select by text",
			task:       schemas.TaskDescriptor{Action: schemas.ActionSelectByText, Selector: "#size", Value: "Medium"},
			wantStatus: schemas.StatusSuccess,
			wantResult: `Selected option "Medium" in #size`,
		},
		{
			name:       "select missing dropdown",
			task:       schemas.TaskDescriptor{Action: schemas.ActionSelectByText, Selector: "#email", Value: "Medium"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonDropdownNotFound,
		},
		{
			name:       "select missing option",
			task:       schemas.TaskDescriptor{Action: schemas.ActionSelectByText, Selector: "#size", Value: "Huge"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonOptionNotFound,
		},
		{
			name:       "unknown action",
			task:       schemas.TaskDescriptor{Action: "wiggle", Selector: "#submit"},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonUnknownAction,
		},
		{
			name:       "navigate is never executed here",
			task:       schemas.TaskDescriptor{Action: schemas.ActionNavigate},
			wantStatus: schemas.StatusError,
			wantReason: dispatcher.ReasonUnknownAction,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newStaticDispatcher(t)
			resp := d.Execute(context.Background(), tc.task)
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, tc.wantResult, resp.Result)
			assert.Equal(t, tc.wantReason, resp.Message)
		})
	}
}

func TestExecute_AppliesToPage(t *testing.T) {
	ctx := context.Background()
	d, doc := newStaticDispatcher(t)

	require.True(t, d.Execute(ctx, schemas.TaskDescriptor{Action: schemas.ActionUpdate, Selector: "#email", Value: "ada@example.com"}).OK())
	value, err := doc.Read(ctx, "#email", "value")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", value)

	require.True(t, d.Execute(ctx, schemas.TaskDescriptor{Action: schemas.ActionSelectByText, Selector: "#size", Value: "Medium"}).OK())
	selected, err := doc.SelectedText("#size")
	require.NoError(t, err)
	assert.Equal(t, "Medium", selected)

	events := doc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "change", events[0].Type)
	assert.True(t, events[0].Bubbles)
}

func TestExecute_UnexpectedPageError(t *testing.T) {
	p := new(mocks.MockPage)
	p.On("Click", mock.Anything, "#x").Return(errors.New("cdp: target closed"))

	d, err := dispatcher.New(p, zap.NewNop())
	require.NoError(t, err)

	resp := d.Execute(context.Background(), schemas.TaskDescriptor{Action: schemas.ActionClick, Selector: "#x"})
	assert.False(t, resp.OK())
	assert.Equal(t, "executor error: cdp: target closed", resp.Message)
	p.AssertExpectations(t)
}

func TestExecute_RecoversFromPanic(t *testing.T) {
	p := new(mocks.MockPage)
	p.On("Read", mock.Anything, "#x", "innerText").Run(func(args mock.Arguments) {
		panic("selector engine exploded")
	}).Return("", nil)

	d, err := dispatcher.New(p, zap.NewNop())
	require.NoError(t, err)

	resp := d.Execute(context.Background(), schemas.TaskDescriptor{Action: schemas.ActionScrape, Selector: "#x"})
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Message, "selector engine exploded")
}

func TestExecute_WrappedSentinelErrors(t *testing.T) {
	p := new(mocks.MockPage)
	p.On("SelectByText", mock.Anything, "#s", "x").Return(errors.Join(errors.New("context"), dispatcher.ErrOptionNotFound))

	d, err := dispatcher.New(p, zap.NewNop())
	require.NoError(t, err)

	resp := d.Execute(context.Background(), schemas.TaskDescriptor{Action: schemas.ActionSelectByText, Selector: "#s", Value: "x"})
	assert.Equal(t, dispatcher.ReasonOptionNotFound, resp.Message)
}

func TestHandler(t *testing.T) {
	d, _ := newStaticDispatcher(t)
	h := d.Handler()

	task := schemas.TaskDescriptor{Action: schemas.ActionClick, Selector: "#submit"}
	resp := h(context.Background(), schemas.NewExecuteTaskRequest("req-1", task))
	assert.True(t, resp.OK())

	resp = h(context.Background(), schemas.ExecuteTaskRequest{Kind: "reload", Task: task})
	assert.False(t, resp.OK())
	assert.Equal(t, "unhandled request: reload", resp.Message)
}

// FuzzExecute checks that arbitrary task descriptors always produce a reply.
func FuzzExecute(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		var task schemas.TaskDescriptor
		if err := fuzz.NewConsumer(data).GenerateStruct(&task); err != nil {
			return
		}

		doc := static.NewDocument("page", nil, zap.NewNop())
		if err := doc.Load(page, "https://example.com/"); err != nil {
			t.Fatalf("load: %v", err)
		}
		d, err := dispatcher.New(doc, zap.NewNop())
		if err != nil {
			t.Fatalf("new: %v", err)
		}

		resp := d.Execute(context.Background(), task)
		if resp.Status != schemas.StatusSuccess && resp.Status != schemas.StatusError {
			t.Fatalf("unexpected status %q for %+v", resp.Status, task)
		}
		if !task.Action.Known() || task.Action == schemas.ActionNavigate {
			if resp.Message != dispatcher.ReasonUnknownAction {
				t.Fatalf("expected unknown action for %q, got %q", task.Action, resp.Message)
			}
		}
	})
}
