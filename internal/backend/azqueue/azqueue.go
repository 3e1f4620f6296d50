// Package azqueue implements the queue capability interface on Azure
// Queue Storage.
package azqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	azq "github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is an Azure Queue Storage backend bound to one queue.
type Backend struct {
	client *azq.QueueClient
	name   string
	closed bool
}

// Connect builds the queue client and verifies the queue exists.
func Connect(ctx context.Context, a auth.Azure, queueName string) (*Backend, error) {
	var client *azq.QueueClient
	var err error
	if a.ConnectionString != "" {
		client, err = azq.NewQueueClientFromConnectionString(a.ConnectionString, queueName, nil)
	} else {
		var cred *azq.SharedKeyCredential
		cred, err = azq.NewSharedKeyCredential(a.AccountName, a.AccountKey)
		if err == nil {
			var svc *azq.ServiceClient
			svc, err = azq.NewServiceClientWithSharedKeyCredential(a.QueueServiceURL(), cred, nil)
			if err == nil {
				client = svc.NewQueueClient(queueName)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("building queue client: %w", err)
	}

	if _, err := client.GetProperties(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "QueueNotFound" {
			return nil, dferr.NewPath(dferr.CodeQueueNotFound, "queue not found", queueName)
		}
		return nil, fmt.Errorf("checking queue %q: %w", queueName, err)
	}
	return &Backend{client: client, name: queueName}, nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func (b *Backend) Send(ctx context.Context, body string) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.client.EnqueueMessage(ctx, body, nil)
	return err
}

func (b *Backend) Receive(ctx context.Context, max int) ([]types.Message, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	if max > 10 {
		max = 10
	}
	resp, err := b.client.DequeueMessages(ctx, &azq.DequeueMessagesOptions{
		NumberOfMessages: to.Ptr(int32(max)),
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg := types.Message{
			ID:      deref(m.MessageID),
			Body:    deref(m.MessageText),
			Receipt: deref(m.PopReceipt),
		}
		if m.DequeueCount != nil {
			msg.ReceiveCount = int(*m.DequeueCount)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Peek uses the service's native peek, which does not hide messages and
// does not advance their dequeue counters.
func (b *Backend) Peek(ctx context.Context, max int) ([]types.Message, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	if max > 10 {
		max = 10
	}
	resp, err := b.client.PeekMessages(ctx, &azq.PeekMessagesOptions{
		NumberOfMessages: to.Ptr(int32(max)),
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg := types.Message{
			ID:   deref(m.MessageID),
			Body: deref(m.MessageText),
		}
		if m.DequeueCount != nil {
			msg.ReceiveCount = int(*m.DequeueCount)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (b *Backend) Delete(ctx context.Context, msg types.Message) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.client.DeleteMessage(ctx, msg.ID, msg.Receipt, nil)
	return err
}

func (b *Backend) Close() error {
	b.closed = true
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
