package metrics

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// Результаты обработки команды для счётчика задач.
const (
	JobOK            = "ok"
	JobBlockedBudget = "blocked_budget"
	JobFailed        = "failed"
)

// JobSink принимает факты обработки команд обработчиком очереди.
type JobSink interface {
	JobProcessed(result string)
}

// RequestSink принимает факты обработки HTTP-запросов.
type RequestSink interface {
	RequestServed(route, method string, status int)
}

// Jobs это счётчик fg_worker_jobs_total с меткой result.
type Jobs struct {
	counter *Counter
}

// NewJobs регистрирует счётчик задач обработчика.
func NewJobs(r *Registry) (*Jobs, error) {
	c, err := r.NewCounter("fg_worker_jobs_total", "jobs processed total")
	if err != nil {
		return nil, err
	}
	return &Jobs{counter: c}, nil
}

// JobProcessed учитывает обработанную команду.
func (j *Jobs) JobProcessed(result string) {
	j.counter.Inc(attribute.String("result", result))
}

// Requests это счётчик fg_api_http_requests_total с метками route, method, status.
type Requests struct {
	counter *Counter
}

// NewRequests регистрирует счётчик HTTP-запросов.
func NewRequests(r *Registry) (*Requests, error) {
	c, err := r.NewCounter("fg_api_http_requests_total", "total http requests")
	if err != nil {
		return nil, err
	}
	return &Requests{counter: c}, nil
}

// RequestServed учитывает обработанный запрос.
func (q *Requests) RequestServed(route, method string, status int) {
	q.counter.Inc(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)
}
