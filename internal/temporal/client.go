package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// QueryProgress is the query name used to retrieve collection workflow
// progress. Defined here (not in the workflows package) so the server layer
// can query without importing workflow code.
const QueryProgress = "progress"

// Default timeout constants for workflow execution and health checks.
const (
	// DefaultWorkflowExecutionTimeout bounds a collection workflow end to
	// end, including the runner's internal retry delays.
	DefaultWorkflowExecutionTimeout = 30 * time.Minute

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Sentinel error kinds for Temporal operations. TemporalError carries one of
// these so callers can branch with errors.Is without inspecting SDK types.
var (
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")
	ErrQueryFailed            = errors.New("query failed")
	ErrClientClosed           = errors.New("client closed")
	ErrConnectionFailed       = errors.New("connection failed")
	ErrNamespaceNotFound      = errors.New("namespace not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrResourceExhausted      = errors.New("resource exhausted")
	ErrDeadlineExceeded       = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal error with additional context.
type TemporalError struct {
	Op         string // Operation that failed
	Kind       error  // Category of error (sentinel)
	WorkflowID string // Workflow ID (if applicable)
	RunID      string // Run ID (if applicable)
	Err        error  // Underlying error
}

// Error returns the error message.
func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError converts a Temporal SDK error to a TemporalError.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}
	return &TemporalError{
		Op:         op,
		Kind:       classifyServiceError(err),
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}
}

// classifyServiceError maps an SDK serviceerror (or context error) onto one
// of the package sentinels. Anything unrecognized is treated as a connection
// failure.
func classifyServiceError(err error) error {
	switch {
	case isServiceError[*serviceerror.NotFound](err):
		return ErrWorkflowNotFound
	case isServiceError[*serviceerror.WorkflowExecutionAlreadyStarted](err):
		return ErrWorkflowAlreadyStarted
	case isServiceError[*serviceerror.NamespaceNotFound](err):
		return ErrNamespaceNotFound
	case isServiceError[*serviceerror.InvalidArgument](err):
		return ErrInvalidArgument
	case isServiceError[*serviceerror.ResourceExhausted](err):
		return ErrResourceExhausted
	case isServiceError[*serviceerror.DeadlineExceeded](err):
		return ErrDeadlineExceeded
	case isServiceError[*serviceerror.QueryFailed](err):
		return ErrQueryFailed
	case isServiceError[*serviceerror.Unavailable](err):
		return ErrConnectionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ErrClientClosed
	default:
		return ErrConnectionFailed
	}
}

func isServiceError[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// IsWorkflowNotFound checks if the error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted checks if the error indicates a workflow already started.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// IsQueryFailed checks if the error indicates a query failure.
func IsQueryFailed(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsConnectionFailed checks if the error indicates a connection failure.
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// TLSConfig contains TLS configuration for the Temporal client.
type TLSConfig struct {
	// Enabled enables TLS for the connection.
	Enabled bool

	// CertPath is the path to the client certificate file (PEM format).
	CertPath string

	// KeyPath is the path to the client private key file (PEM format).
	KeyPath string

	// CACertPath is the path to the CA certificate file (PEM format).
	CACertPath string

	// ServerName is the expected server name for certificate verification.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// WARNING: This should only be used for testing/development.
	InsecureSkipVerify bool
}

// buildTLSConfig creates a *tls.Config from TLSConfig.
func (t *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: t.InsecureSkipVerify,
		ServerName:         t.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if t.CertPath != "" && t.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if t.CACertPath != "" {
		caCert, err := os.ReadFile(t.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address (e.g., "localhost:7233").
	HostPort string

	// Namespace is the Temporal namespace to use.
	Namespace string

	// TaskQueue is the default task queue for starting workflows.
	TaskQueue string

	// TLS contains optional TLS configuration.
	TLS *TLSConfig

	// Logger bridges SDK logging into the service logger. Optional.
	Logger log.Logger

	// HealthCheckTimeout is the timeout for health check operations.
	// Defaults to 5 seconds if not set.
	HealthCheckTimeout time.Duration
}

// NewClient creates a new Temporal client with the given configuration.
func NewClient(cfg ClientConfig) (client.Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    cfg.Logger,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
		options.ConnectionOptions = client.ConnectionOptions{
			TLS: tlsConfig,
		}
	}

	c, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}

	return c, nil
}

// CollectionWorkflowRequest contains the parameters for starting a
// collection workflow. Defined here so the server layer can start workflows
// without importing the workflows package.
type CollectionWorkflowRequest struct {
	// TaskID is the collection task ID; it determines the workflow ID.
	TaskID uuid.UUID

	// CityName is the target city.
	CityName string

	// DataType is the kind of travel data to collect.
	DataType string
}

// CollectionWorkflowClient provides methods for starting and observing
// collection workflows.
type CollectionWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewCollectionWorkflowClient creates a new CollectionWorkflowClient.
func NewCollectionWorkflowClient(c client.Client, taskQueue string) *CollectionWorkflowClient {
	return &CollectionWorkflowClient{
		client:             c,
		taskQueue:          taskQueue,
		healthCheckTimeout: DefaultHealthCheckTimeout,
	}
}

// WorkflowID returns the deterministic workflow ID for a task. One workflow
// per task; starting the same task twice is rejected by Temporal as an
// already-started workflow.
func WorkflowID(taskID uuid.UUID) string {
	return fmt.Sprintf("collection-%s", taskID)
}

// Close closes the underlying Temporal client connection.
func (c *CollectionWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

// isClosed returns whether the client has been closed. It is safe for concurrent use.
func (c *CollectionWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection health to the Temporal server.
func (c *CollectionWorkflowClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{
			Op:   "Health",
			Kind: ErrClientClosed,
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	_, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{})
	if err != nil {
		return wrapTemporalError("Health", err, "", "")
	}

	return nil
}

// StartCollectionWorkflow starts a new collection workflow. The workflow
// function must be registered with the worker separately.
func (c *CollectionWorkflowClient) StartCollectionWorkflow(ctx context.Context, req CollectionWorkflowRequest, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error) {
	if c.isClosed() {
		return "", "", &TemporalError{
			Op:   "StartCollectionWorkflow",
			Kind: ErrClientClosed,
		}
	}

	workflowID = WorkflowID(req.TaskID)
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("StartCollectionWorkflow", err, workflowID, "")
	}

	return workflowID, run.GetRunID(), nil
}

// GetWorkflowResult waits for a workflow to complete and returns the result.
func (c *CollectionWorkflowClient) GetWorkflowResult(ctx context.Context, workflowID, runID string, result interface{}) error {
	if c.isClosed() {
		return &TemporalError{
			Op:         "GetWorkflowResult",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	run := c.client.GetWorkflow(ctx, workflowID, runID)

	if err := run.Get(ctx, result); err != nil {
		return wrapTemporalError("GetWorkflowResult", err, workflowID, runID)
	}

	return nil
}

// WorkflowDescription contains information about a workflow execution.
type WorkflowDescription struct {
	// WorkflowID is the workflow identifier.
	WorkflowID string
	// RunID is the workflow run identifier.
	RunID string
	// Status is the workflow execution status.
	Status string
	// StartTime is when the workflow started.
	StartTime time.Time
	// CloseTime is when the workflow completed (nil if still running).
	CloseTime *time.Time
}

// DescribeWorkflow returns information about a workflow execution.
func (c *CollectionWorkflowClient) DescribeWorkflow(ctx context.Context, workflowID, runID string) (*WorkflowDescription, error) {
	if c.isClosed() {
		return nil, &TemporalError{
			Op:         "DescribeWorkflow",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		return nil, wrapTemporalError("DescribeWorkflow", err, workflowID, runID)
	}

	desc := &WorkflowDescription{
		WorkflowID: workflowID,
		RunID:      resp.WorkflowExecutionInfo.Execution.RunId,
		Status:     resp.WorkflowExecutionInfo.Status.String(),
		StartTime:  resp.WorkflowExecutionInfo.StartTime.AsTime(),
	}

	if resp.WorkflowExecutionInfo.CloseTime != nil {
		closeTime := resp.WorkflowExecutionInfo.CloseTime.AsTime()
		desc.CloseTime = &closeTime
	}

	return desc, nil
}

// QueryWorkflowProgress queries a running workflow's progress percentage.
func (c *CollectionWorkflowClient) QueryWorkflowProgress(ctx context.Context, workflowID, runID string) (int, error) {
	if c.isClosed() {
		return 0, &TemporalError{
			Op:         "QueryWorkflowProgress",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, runID, QueryProgress)
	if err != nil {
		return 0, wrapTemporalError("QueryWorkflowProgress", err, workflowID, runID)
	}

	var progress int
	if err := resp.Get(&progress); err != nil {
		return 0, &TemporalError{
			Op:         "QueryWorkflowProgress",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			RunID:      runID,
			Err:        fmt.Errorf("decode query result: %w", err),
		}
	}

	return progress, nil
}

// Client returns the underlying Temporal client for advanced operations.
func (c *CollectionWorkflowClient) Client() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue name.
func (c *CollectionWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
