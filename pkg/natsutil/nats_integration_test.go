//go:build integration

package natsutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNATS_PubSub(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(nc.Close)

	ch := make(chan testEvent, 1)
	sub, err := Subscribe(nc, "integ.applications", func(_ context.Context, e testEvent) {
		ch <- e
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "integ.applications", testEvent{ApplicantID: "a9"}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.ApplicantID != "a9" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
