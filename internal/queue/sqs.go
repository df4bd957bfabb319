// Package queue moves OCR jobs through an SQS queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agri_inspection/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Producer struct {
	client   sqsAPI
	queueURL string
}

func NewProducer(client *sqs.Client, queueURL string) *Producer {
	return &Producer{client: client, queueURL: queueURL}
}

func (p *Producer) Enqueue(ctx context.Context, job domain.OCRJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode OCR job: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send OCR job: %w", err)
	}
	return nil
}

// JobHandler processes one OCR job. A returned error leaves the message for redelivery.
type JobHandler interface {
	ProcessOCRJob(ctx context.Context, job domain.OCRJob) error
}

type Consumer struct {
	client     sqsAPI
	queueURL   string
	handler    JobHandler
	log        *zap.Logger
	retryDelay time.Duration
}

func NewConsumer(client *sqs.Client, queueURL string, handler JobHandler, log *zap.Logger) *Consumer {
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		handler:    handler,
		log:        log.With(zap.String("queue", queueURL)),
		retryDelay: 5 * time.Second,
	}
}

// Start long-polls the queue until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("OCR job consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("OCR job consumer stopped")
			return
		default:
		}

		if err := c.poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			c.log.Error("receiving OCR jobs", zap.Error(err))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
			}
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   120,
	})
	if err != nil {
		return err
	}
	for _, msg := range result.Messages {
		c.handle(ctx, msg)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	msgID := aws.ToString(msg.MessageId)
	if msg.Body == nil {
		c.log.Warn("empty OCR job message, deleting", zap.String("message_id", msgID))
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	var job domain.OCRJob
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil || job.RecordID == 0 {
		c.log.Warn("malformed OCR job message, deleting", zap.String("message_id", msgID), zap.Error(err))
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	if err := c.handler.ProcessOCRJob(ctx, job); err != nil {
		c.log.Error("OCR job failed, leaving for redelivery",
			zap.String("message_id", msgID), zap.Int("record_id", job.RecordID), zap.Error(err))
		return
	}
	c.deleteMessage(ctx, msg.ReceiptHandle)
}

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.log.Warn("message without receipt handle cannot be deleted")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Error("deleting OCR job message", zap.Error(err))
	}
}
