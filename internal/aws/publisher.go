package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is one queue entry. GroupID and DedupID only apply to FIFO queues
// and are dropped for standard ones.
type Message struct {
	Body       string
	Attributes map[string]string
	GroupID    string
	DedupID    string
}

// Publisher sends messages to a single queue.
type Publisher struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send enqueues m and returns the queue's message id. Empty attribute values
// are skipped since SQS rejects them.
func (p *Publisher) Send(ctx context.Context, m Message) (string, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:          &p.queueURL,
		MessageBody:       &m.Body,
		MessageAttributes: stringAttributes(m.Attributes),
	}
	if p.fifo {
		if m.GroupID != "" {
			in.MessageGroupId = String(m.GroupID)
		}
		if m.DedupID != "" {
			in.MessageDeduplicationId = String(m.DedupID)
		}
	}

	out, err := p.client.SendMessage(ctx, in)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", p.queueURL, err)
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

func stringAttributes(src map[string]string) map[string]sqstypes.MessageAttributeValue {
	var out map[string]sqstypes.MessageAttributeValue
	for k, v := range src {
		if v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]sqstypes.MessageAttributeValue, len(src))
		}
		out[k] = sqstypes.MessageAttributeValue{DataType: String("String"), StringValue: String(v)}
	}
	return out
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
