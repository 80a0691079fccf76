package schemas

// -- Request/Response Schemas --

// Status is the coarse result carried by every response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// RequestKind names an operation accepted by the controller or the executor.
type RequestKind string

const (
	RequestProcessTasks           RequestKind = "processTasks"
	RequestSaveConfiguration      RequestKind = "saveConfiguration"
	RequestLoadConfiguration      RequestKind = "loadConfiguration"
	RequestDeleteConfiguration    RequestKind = "deleteConfiguration"
	RequestListConfigurationNames RequestKind = "listConfigurationNames"
	RequestExecuteTask            RequestKind = "executeTask"
)

// Request is the envelope sent by a trigger to the controller.
// Only the fields relevant to Kind are read.
type Request struct {
	ID         string           `json:"id,omitempty"`
	Kind       RequestKind      `json:"kind"`
	Tasks      []TaskDescriptor `json:"tasks,omitempty"`
	Name       string           `json:"name,omitempty"`
	RawContent string           `json:"rawContent,omitempty"`
}

// Response is the single reply to a Request.
type Response struct {
	ID         string      `json:"id,omitempty"`
	Status     Status      `json:"status"`
	Message    string      `json:"message,omitempty"`
	RawContent string      `json:"rawContent,omitempty"`
	Names      []string    `json:"names"`
	Outcome    *RunOutcome `json:"outcome,omitempty"`
}

// OK reports whether the response carries a success status.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// ErrorResponse builds a failed response with the given message.
func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// ExecuteTaskRequest is sent from the controller to an executor context.
type ExecuteTaskRequest struct {
	ID   string         `json:"id,omitempty"`
	Kind RequestKind    `json:"kind"`
	Task TaskDescriptor `json:"task"`
}

// NewExecuteTaskRequest wraps a task for delivery to the executor.
func NewExecuteTaskRequest(id string, task TaskDescriptor) ExecuteTaskRequest {
	return ExecuteTaskRequest{ID: id, Kind: RequestExecuteTask, Task: task}
}

// TaskResponse is the executor's reply to an ExecuteTaskRequest.
// Result is a description string or a ScrapeResult.
type TaskResponse struct {
	Status  Status      `json:"status"`
	Result  interface{} `json:"result,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK reports whether the executor performed the task.
func (r TaskResponse) OK() bool { return r.Status == StatusSuccess }

// TaskSucceeded builds a successful executor reply.
func TaskSucceeded(result interface{}) TaskResponse {
	return TaskResponse{Status: StatusSuccess, Result: result}
}

// TaskFailed builds a failed executor reply.
func TaskFailed(reason string) TaskResponse {
	return TaskResponse{Status: StatusError, Message: reason}
}
