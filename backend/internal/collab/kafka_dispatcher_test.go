package collab

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	json "github.com/goccy/go-json"
)

func testOptions() KafkaDispatcherOptions {
	return KafkaDispatcherOptions{
		QueueSize:   4,
		Workers:     1,
		MaxRetry:    1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestKafkaDispatcher_Sends(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt struct {
			DocID    string `json:"docId"`
			Revision uint64 `json:"revision"`
		}
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.DocID != "d1" || evt.Revision != 3 {
			return fmt.Errorf("unexpected event %+v", evt)
		}
		return nil
	})

	d := NewKafkaDispatcher(producer, "doc-ops", NewSemaphoreControl(1), testOptions())
	if err := d.Enqueue(context.Background(), DocOpEvent{EventType: EventOpApplied, DocID: "d1", Revision: 3}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	d.Close()
	if err := producer.Close(); err != nil {
		t.Fatalf("producer.Close() error = %v", err)
	}
}

func TestKafkaDispatcher_RetriesThenSucceeds(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	d := NewKafkaDispatcher(producer, "doc-ops", nil, testOptions())
	if err := d.Enqueue(context.Background(), DocOpEvent{DocID: "d1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	d.Close()
	if err := producer.Close(); err != nil {
		t.Fatalf("producer.Close() error = %v", err)
	}
}

func TestKafkaDispatcher_DropsAfterMaxRetry(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	// 第二个事件照常发送
	producer.ExpectSendMessageAndSucceed()

	d := NewKafkaDispatcher(producer, "doc-ops", nil, testOptions())
	_ = d.Enqueue(context.Background(), DocOpEvent{DocID: "d1", Revision: 1})
	_ = d.Enqueue(context.Background(), DocOpEvent{DocID: "d1", Revision: 2})
	d.Close()
	if err := producer.Close(); err != nil {
		t.Fatalf("producer.Close() error = %v", err)
	}
}

func TestKafkaDispatcher_QueueFull(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	// 先占住唯一的发送名额，worker 取到第一个事件后阻塞
	sem := NewSemaphoreControl(1)
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	opt := testOptions()
	opt.QueueSize = 1
	d := NewKafkaDispatcher(producer, "doc-ops", sem, opt)

	ctx := context.Background()
	if err := d.Enqueue(ctx, DocOpEvent{Revision: 1}); err != nil {
		t.Fatalf("Enqueue(1) error = %v", err)
	}
	if err := d.Enqueue(ctx, DocOpEvent{Revision: 2}); err != nil {
		t.Fatalf("Enqueue(2) error = %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := d.Enqueue(short, DocOpEvent{Revision: 3}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Enqueue(3) error = %v, want DeadlineExceeded", err)
	}

	_ = sem.Release()
	d.Close()
	if err := producer.Close(); err != nil {
		t.Fatalf("producer.Close() error = %v", err)
	}
	if err := d.Enqueue(ctx, DocOpEvent{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Enqueue() after Close error = %v, want ErrDispatcherClosed", err)
	}
}
