package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/agenthub/internal/tlsutil"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// HTTP request tool
// =============================================================================

const (
	httpToolDefaultTimeout = 30 * time.Second
	httpToolMaxBody        = 256 * 1024

	// fileToolMaxBytes caps file reads so a large file cannot blow up
	// the model context
	fileToolMaxBytes = 2000
)

var httpRequestSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "Target URL"},
    "method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE"], "description": "HTTP method, default GET"},
    "body": {"type": "string", "description": "Request body for POST or PUT"},
    "headers": {"type": "object", "description": "Extra request headers", "additionalProperties": {"type": "string"}}
  },
  "required": ["url"]
}`)

type httpRequestTool struct {
	name   string
	desc   string
	client *http.Client
}

func newHTTPRequestTool(tc types.ToolConfig) *httpRequestTool {
	timeout := httpToolDefaultTimeout
	if secs, ok := tc.Config["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	desc := tc.Description
	if desc == "" {
		desc = "Perform an HTTP request (GET, POST, PUT, DELETE) and return the response body"
	}
	return &httpRequestTool{
		name:   tc.Name,
		desc:   desc,
		client: tlsutil.NewClient(tlsutil.Options{Timeout: timeout}),
	}
}

func (t *httpRequestTool) Name() string { return t.name }

func (t *httpRequestTool) Schema() types.ToolSchema {
	return types.ToolSchema{Name: t.name, Description: t.desc, Parameters: httpRequestSchema}
}

func (t *httpRequestTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return "", types.NewError(types.ErrInvalidRequest, "url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", types.NewError(types.ErrInvalidRequest, "url must use http or https")
	}

	method := http.MethodGet
	if m, _ := args["method"].(string); m != "" {
		method = strings.ToUpper(m)
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return "", types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unsupported method: %s", method))
	}

	var body io.Reader
	if b, _ := args["body"].(string); b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "invalid url").WithCause(err)
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrExecutionFailed, "http request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, httpToolMaxBody))
	if err != nil {
		return "", types.NewError(types.ErrExecutionFailed, "reading response failed").WithCause(err)
	}
	return fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, data), nil
}

// =============================================================================
// File reader tool
// =============================================================================

var fileReaderSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Path of the file to read"}
  },
  "required": ["path"]
}`)

type fileReaderTool struct {
	name    string
	desc    string
	baseDir string
}

func newFileReaderTool(tc types.ToolConfig) *fileReaderTool {
	baseDir, _ := tc.Config["base_dir"].(string)
	desc := tc.Description
	if desc == "" {
		desc = "Read a text file and return its contents"
	}
	return &fileReaderTool{name: tc.Name, desc: desc, baseDir: baseDir}
}

func (t *fileReaderTool) Name() string { return t.name }

func (t *fileReaderTool) Schema() types.ToolSchema {
	return types.ToolSchema{Name: t.name, Description: t.desc, Parameters: fileReaderSchema}
}

func (t *fileReaderTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", types.NewError(types.ErrInvalidRequest, "path is required")
	}

	if t.baseDir != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(t.baseDir, path)
		}
		resolved, err := filepath.Abs(path)
		if err != nil {
			return "", types.NewError(types.ErrInvalidRequest, "invalid path").WithCause(err)
		}
		base, err := filepath.Abs(t.baseDir)
		if err != nil {
			return "", types.NewError(types.ErrInternalError, "invalid base directory").WithCause(err)
		}
		if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
			return "", types.NewError(types.ErrForbidden,
				fmt.Sprintf("path escapes allowed directory: %s", path))
		}
		path = resolved
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewError(types.ErrNotFound,
				fmt.Sprintf("file not found: %s", path))
		}
		return "", types.NewError(types.ErrExecutionFailed, "opening file failed").WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, fileToolMaxBytes))
	if err != nil {
		return "", types.NewError(types.ErrExecutionFailed, "reading file failed").WithCause(err)
	}
	return string(data), nil
}
