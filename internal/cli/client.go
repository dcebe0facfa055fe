package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/store"
)

// --- Request types (дублируются из api, CLI не импортирует internal/api) ---

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	ScriptName      string          `json:"script_name"`
	ParameterValues map[string]any  `json:"parameter_values,omitempty"`
	Schedule        json.RawMessage `json:"schedule"`
}

type updateScheduleRequest struct {
	Schedule any `json:"schedule"`
}

type createScheduleResponse struct {
	ID domain.JobID `json:"id"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// maxErrorBody — сколько байт тела ошибки читаем.
const maxErrorBody = 1 << 20

// --- Client ---

// Client — HTTP-клиент для schedules API.
// Реализует store.Backend.
type Client struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут HTTP-запросов (по умолчанию 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUser задаёт пользователя, от имени которого создаются schedules (заголовок X-User).
func WithUser(user string) Option {
	return func(c *Client) {
		c.user = user
	}
}

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient создаёт клиент для API.
// Пути запросов считаются относительно baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withUser возвращает копию клиента с другим пользователем.
func (c *Client) withUser(user string) *Client {
	cp := *c
	cp.user = user
	return &cp
}

var _ store.Backend = (*Client)(nil)

// --- Schedules ---

// ListSchedules возвращает schedules. Если scriptName не пустой — фильтрует на сервере.
func (c *Client) ListSchedules(ctx context.Context, scriptName string) ([]domain.ScheduleRecord, error) {
	path := "schedules"
	if scriptName != "" {
		params := url.Values{}
		params.Set("script", scriptName)
		// пробел как %20; литеральный "+" Encode уже превратил в %2B
		path += "?" + strings.ReplaceAll(params.Encode(), "+", "%20")
	}

	var schedules []domain.ScheduleRecord
	err := c.doJSON(ctx, http.MethodGet, path, nil, &schedules)
	return schedules, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(ctx context.Context, jobID domain.JobID) (*domain.ScheduleRecord, error) {
	var schedule domain.ScheduleRecord
	if err := c.doJSON(ctx, http.MethodGet, "schedules/"+url.PathEscape(jobID.String()), nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CreateSchedule создаёт schedule и возвращает его ID.
func (c *Client) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (domain.JobID, error) {
	var resp createScheduleResponse
	if err := c.doJSON(ctx, http.MethodPost, "schedules", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(ctx context.Context, jobID domain.JobID) error {
	return c.doJSON(ctx, http.MethodDelete, "schedules/"+url.PathEscape(jobID.String())+"/delete", nil, nil)
}

// UpdateSchedule заменяет конфигурацию расписания.
func (c *Client) UpdateSchedule(ctx context.Context, jobID domain.JobID, schedule any) error {
	body := updateScheduleRequest{Schedule: schedule}
	return c.doJSON(ctx, http.MethodPut, "schedules/"+url.PathEscape(jobID.String())+"/update", body, nil)
}

// --- HTTP helpers ---

// doJSON выполняет запрос и декодирует ответ в result (если result != nil).
// Любой сбой возвращается как *store.RequestError.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &store.RequestError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			Err:        err,
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &store.RequestError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, bodyReader)
	if err != nil {
		return nil, &store.RequestError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &store.RequestError{Message: err.Error(), Err: err}
	}
	return resp, nil
}

// checkError превращает ответ 4xx/5xx в *store.RequestError.
// Тело сохраняется как payload, если это валидный JSON.
func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	reqErr := &store.RequestError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("API error: HTTP %d", resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		return reqErr
	}
	reqErr.Payload = json.RawMessage(data)

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		reqErr.Message = fmt.Sprintf("%s: %s", er.Error.Code, er.Error.Message)
	}

	return reqErr
}
