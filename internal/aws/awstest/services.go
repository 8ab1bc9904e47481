package awstest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records sent messages.
type SQS struct {
	mu       sync.Mutex
	Messages []*sqs.SendMessageInput
	Err      error
}

func (q *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Messages = append(q.Messages, in)
	id := fmt.Sprintf("msg-%d", len(q.Messages))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Bodies returns the bodies of all sent messages in order.
func (q *SQS) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.Messages))
	for _, m := range q.Messages {
		out = append(out, *m.MessageBody)
	}
	return out
}

// CloudWatch records metric data.
type CloudWatch struct {
	mu     sync.Mutex
	Data   []cwtypes.MetricDatum
	Spaces []string
}

func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Data = append(c.Data, in.MetricData...)
	c.Spaces = append(c.Spaces, *in.Namespace)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Sum totals the values recorded under a metric name.
func (c *CloudWatch) Sum(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, d := range c.Data {
		if d.MetricName != nil && *d.MetricName == name && d.Value != nil {
			total += *d.Value
		}
	}
	return total
}

type object struct {
	body     []byte
	modified time.Time
}

// S3 is an in-memory object store keyed by bucket and key.
type S3 struct {
	mu      sync.Mutex
	objects map[string]map[string]object
	NowFunc func() time.Time
}

func NewS3() *S3 {
	return &S3{objects: map[string]map[string]object{}, NowFunc: time.Now}
}

func (s *S3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if s.objects[*in.Bucket] == nil {
		s.objects[*in.Bucket] = map[string]object{}
	}
	s.objects[*in.Bucket][*in.Key] = object{body: body, modified: s.NowFunc()}
	return &s3.PutObjectOutput{}, nil
}

func (s *S3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[*in.Bucket][*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: in.Key}
	}
	size := int64(len(obj.body))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body)), ContentLength: &size}, nil
}

func (s *S3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := ""
	if in.Prefix != nil {
		prefix = *in.Prefix
	}
	var keys []string
	for k := range s.objects[*in.Bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		obj := s.objects[*in.Bucket][k]
		key := k
		size := int64(len(obj.body))
		modified := obj.modified
		out.Contents = append(out.Contents, s3types.Object{Key: &key, Size: &size, LastModified: &modified})
	}
	return out, nil
}
