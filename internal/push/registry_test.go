package push_test

import (
	"context"
	"testing"

	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/push"
)

type namedTransport string

func (n namedTransport) Name() string { return string(n) }

func (n namedTransport) Connect(context.Context) (push.Channel, error) { return nil, nil }

func TestBuiltinTransportsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, n := range push.Registered() {
		names[n] = true
	}
	for _, want := range []string{"broker", "stream", "socket"} {
		if !names[want] {
			t.Fatalf("transport %q not registered (have %v)", want, push.Registered())
		}
	}
}

func TestBuildSkipsUnconfigured(t *testing.T) {
	cfg := config.PushConfig{
		Order:  []string{"broker", "stream", "socket"},
		Socket: config.SocketConfig{URL: "ws://localhost/ws"},
	}

	got := push.Build(cfg, push.Credentials{Token: "t"})

	if len(got) != 1 || got[0].Name() != "socket" {
		t.Fatalf("expected only the socket transport, got %v", got)
	}
}

func TestBuildFollowsOrderAndIgnoresUnknown(t *testing.T) {
	push.Register("test-first", func(config.PushConfig, push.Credentials) (push.Transport, bool) {
		return namedTransport("test-first"), true
	})
	cfg := config.PushConfig{
		Order:  []string{"socket", "does-not-exist", " TEST-FIRST ", "socket", "stream"},
		Socket: config.SocketConfig{URL: "ws://localhost/ws"},
		Stream: config.StreamConfig{URL: "http://localhost/events"},
	}

	got := push.Build(cfg, push.Credentials{})

	var names []string
	for _, tr := range got {
		names = append(names, tr.Name())
	}
	want := []string{"socket", "test-first", "stream"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	push.Register("test-dup", func(config.PushConfig, push.Credentials) (push.Transport, bool) { return nil, false })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	push.Register("test-dup", func(config.PushConfig, push.Credentials) (push.Transport, bool) { return nil, false })
}

func TestWithAccessToken(t *testing.T) {
	got, err := push.WithAccessToken("https://api.arda.vn/ws?x=1", "abc", true)
	if err != nil {
		t.Fatal(err)
	}
	if got != "wss://api.arda.vn/ws?access_token=abc&x=1" {
		t.Fatalf("unexpected url %q", got)
	}

	got, _ = push.WithAccessToken("http://h/events", "", false)
	if got != "http://h/events" {
		t.Fatalf("empty token must not add a parameter: %q", got)
	}
}

func TestChannelFor(t *testing.T) {
	cases := []struct {
		template string
		creds    push.Credentials
		want     string
		ok       bool
	}{
		{"notifications", push.Credentials{}, "notifications", true},
		{"notifications:{subject}", push.Credentials{Subject: "u-1"}, "notifications:u-1", true},
		{"notifications:{subject}", push.Credentials{Token: "opaque"}, "", false},
		{"", push.Credentials{Subject: "u-1"}, "", false},
	}
	for _, tc := range cases {
		got, ok := push.ChannelFor(tc.template, tc.creds)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ChannelFor(%q, %+v) = %q, %v; want %q, %v", tc.template, tc.creds, got, ok, tc.want, tc.ok)
		}
	}
}
