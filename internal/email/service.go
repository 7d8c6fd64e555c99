package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"mijob/internal/logger"
	"mijob/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
	popTimeout     = 2 * time.Second
)

type Job struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Options struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string

	// Token prices quoted in low-balance reminders.
	MissionCost int64
	ContactCost int64
}

// Service queues notifications in Redis and delivers them over SMTP from a
// single worker loop.
type Service struct {
	redis      *redis.Client
	opts       Options
	deliver    func(Job) error
	retryDelay time.Duration
}

func New(rdb *redis.Client, opts Options) *Service {
	s := &Service{
		redis:      rdb,
		opts:       opts,
		retryDelay: 5 * time.Second,
	}
	s.deliver = s.sendSMTP
	return s
}

func (s *Service) enqueue(ctx context.Context, kind, to, name, subject, body string) error {
	if to == "" {
		return fmt.Errorf("email %s: empty recipient", kind)
	}
	job := Job{
		Type:    kind,
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("failed to queue email", "type", kind, "to", to, "error", err.Error())
		return err
	}

	logger.Debug("email queued", "type", kind, "to", to)
	return nil
}

// Start runs the delivery loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("bad email payload: %v", err)
		return
	}

	job.Tries++
	if err := s.deliver(job); err != nil {
		metrics.RecordEmail(job.Type, "failed")
		logger.Warn("email delivery failed", "to", job.To, "attempt", job.Tries, "error", err.Error())

		if job.Tries < maxTries {
			if s.retryDelay > 0 {
				time.Sleep(s.retryDelay)
			}
			data, _ := json.Marshal(job)
			s.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			return
		}
		s.saveFailed(ctx, job, err)
		return
	}

	metrics.RecordEmail(job.Type, "success")
	logger.Info("email sent", "type", job.Type, "to", job.To)
}

func (s *Service) sendSMTP(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.opts.FromName, s.opts.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.opts.SMTPUser != "" && s.opts.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.opts.SMTPUser, s.opts.SMTPPass, s.opts.SMTPHost)
	}

	addr := s.opts.SMTPHost + ":" + s.opts.SMTPPort
	return smtp.SendMail(addr, auth, s.opts.From, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(ctx context.Context, job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data))
	logger.Error("email moved to failed queue", "to", job.To, "type", job.Type)
}

// QueueLength also refreshes the queue gauge.
func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (s *Service) SendWelcome(ctx context.Context, to, name, role string) error {
	next := "browse open missions and wait for companies to reach out"
	switch role {
	case "company":
		next = "pick a plan to start posting missions and contacting workers"
	case "individual":
		next = "buy a token pack to post your first mission"
	}
	body := fmt.Sprintf(`Hi %s,

Welcome to mijob! Your %s account is ready.

Next step: %s.

- The mijob team`, name, role, next)

	return s.enqueue(ctx, "welcome", to, name, "Welcome to mijob", body)
}

func (s *Service) SendLowBalance(ctx context.Context, to, name string, balance int64) error {
	body := fmt.Sprintf(`Hi %s,

You have %d tokens left. Posting a mission costs %d tokens and contacting a worker costs %d.

Top up from your account page to keep going.

- The mijob team`, name, balance, s.opts.MissionCost, s.opts.ContactCost)

	return s.enqueue(ctx, "low_balance", to, name, "Your token balance is running low", body)
}

func (s *Service) SendLimitReached(ctx context.Context, to, name, action string, limit int) error {
	what := "missions"
	if action == "contact" {
		what = "worker contacts"
	}
	body := fmt.Sprintf(`Hi %s,

You have used all %d %s included in your plan this month.

Your allowance resets on the 1st. Upgrade your plan if you need more before then.

- The mijob team`, name, limit, what)

	return s.enqueue(ctx, "limit_reached", to, name, "Monthly "+what+" limit reached", body)
}

const previewRunes = 140

func (s *Service) SendNewMessage(ctx context.Context, to, name, from, preview string) error {
	if r := []rune(preview); len(r) > previewRunes {
		preview = string(r[:previewRunes]) + "..."
	}
	body := fmt.Sprintf(`Hi %s,

%s sent you a message:

  %s

Reply from your inbox.

- The mijob team`, name, from, preview)

	return s.enqueue(ctx, "new_message", to, name, "New message from "+from, body)
}
