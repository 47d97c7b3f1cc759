package mailbox_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"digestcast/internal/config"
	"digestcast/internal/mailbox"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// fakePOP3 serves a fixed maildrop and records RETR and DELE commands. Like
// a real server it refuses a second login while a session holds the lock.
type fakePOP3 struct {
	listener  net.Listener
	password  string
	messages  []string
	retrieved chan int
	deleted   chan int

	locked   atomic.Int32
	rejected atomic.Int32
}

func startFakePOP3(t *testing.T, password string, messages []string) *fakePOP3 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fakePOP3{
		listener:  ln,
		password:  password,
		messages:  messages,
		retrieved: make(chan int, 16),
		deleted:   make(chan int, 16),
	}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (s *fakePOP3) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakePOP3) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakePOP3) handle(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, line := range lines {
			_, _ = w.WriteString(line + "\r\n")
		}
		_ = w.Flush()
	}
	holdsLock := false
	unlock := func() {
		if holdsLock {
			s.locked.Add(-1)
			holdsLock = false
		}
	}
	defer unlock()

	reply("+OK fake pop3 ready")
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "PASS":
			if len(fields) < 2 || fields[1] != s.password {
				reply("-ERR invalid password")
				continue
			}
			if !s.locked.CompareAndSwap(0, 1) {
				s.rejected.Add(1)
				reply("-ERR maildrop already locked")
				continue
			}
			holdsLock = true
			reply("+OK logged in")
		case "UIDL":
			time.Sleep(10 * time.Millisecond)
			lines := []string{"+OK"}
			for i := range s.messages {
				lines = append(lines, fmt.Sprintf("%d uid-%d", i+1, i+1))
			}
			reply(append(lines, ".")...)
		case "TOP", "RETR":
			n, _ := strconv.Atoi(fields[1])
			raw := s.messages[n-1]
			if strings.ToUpper(fields[0]) == "TOP" {
				raw = raw[:strings.Index(raw, "\r\n\r\n")+4]
			} else {
				s.retrieved <- n
			}
			reply("+OK")
			_, _ = w.WriteString(raw)
			if !strings.HasSuffix(raw, "\r\n") {
				_, _ = w.WriteString("\r\n")
			}
			reply(".")
		case "DELE":
			n, _ := strconv.Atoi(fields[1])
			s.deleted <- n
			reply("+OK")
		case "QUIT":
			unlock()
			reply("+OK bye")
			return
		default:
			reply("+OK")
		}
	}
}

func TestPOP3FetcherDownloadsOnlyMatchingMessages(t *testing.T) {
	inWindow := testWindow.Start.Add(2 * time.Hour)
	srv := startFakePOP3(t, "secret", []string{
		rawMessage("one@daily", "news@daily.example", "One", inWindow, "first body"),
		rawMessage("other@tech", "digest@tech.example", "Other", inWindow, "other body"),
		rawMessage("old@daily", "news@daily.example", "Old", testWindow.Start.Add(-time.Hour), "old body"),
	})

	fetcher := mailbox.NewPOP3Fetcher(config.MailServer{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		Username: "reader",
		Password: "secret",
	}, retry.Policy{Attempts: 1}, nil)

	result, err := fetcher.Fetch(context.Background(), "news@daily.example", testWindow)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].ID != "one@daily" {
		t.Fatalf("unexpected messages %+v", result.Messages)
	}
	if !strings.Contains(string(result.Messages[0].Raw), "first body") {
		t.Fatalf("raw body missing content: %q", result.Messages[0].Raw)
	}
	close(srv.retrieved)
	var retrieved []int
	for n := range srv.retrieved {
		retrieved = append(retrieved, n)
	}
	if len(retrieved) != 1 || retrieved[0] != 1 {
		t.Fatalf("expected only message 1 to be downloaded, got %v", retrieved)
	}
	if len(srv.deleted) != 0 {
		t.Fatal("fetcher must never delete messages")
	}
}

func TestPOP3FetcherAuthFailure(t *testing.T) {
	srv := startFakePOP3(t, "secret", nil)
	fetcher := mailbox.NewPOP3Fetcher(config.MailServer{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		Username: "reader",
		Password: "wrong",
	}, retry.Policy{Attempts: 1}, nil)

	_, err := fetcher.Fetch(context.Background(), "news@daily.example", testWindow)
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestPOP3FetcherSerializesSessions(t *testing.T) {
	inWindow := testWindow.Start.Add(2 * time.Hour)
	srv := startFakePOP3(t, "secret", []string{
		rawMessage("one@daily", "news@daily.example", "One", inWindow, "first body"),
		rawMessage("two@tech", "digest@tech.example", "Two", inWindow, "second body"),
	})
	fetcher := mailbox.NewPOP3Fetcher(config.MailServer{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		Username: "reader",
		Password: "secret",
	}, retry.Policy{Attempts: 1}, nil)

	senders := []string{"news@daily.example", "digest@tech.example", "news@daily.example", "digest@tech.example"}
	results := make([]mailbox.Result, len(senders))
	errs := make([]error, len(senders))
	var wg sync.WaitGroup
	for i, sender := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = fetcher.Fetch(context.Background(), sender, testWindow)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("fetch %d (%s): %v", i, senders[i], err)
		}
		if len(results[i].Messages) != 1 {
			t.Fatalf("fetch %d returned %d messages", i, len(results[i].Messages))
		}
	}
	if n := srv.rejected.Load(); n != 0 {
		t.Fatalf("server rejected %d logins on a locked maildrop", n)
	}
}
