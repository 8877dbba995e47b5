// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package imapgw

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"

	"github.com/civicdesk/triage/internal/auth"
)

// startServer runs an in-memory IMAP server whose INBOX holds only the
// given messages as unseen.
func startServer(t *testing.T, raws ...string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	addr := ln.Addr().String()
	seed, err := client.Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer seed.Logout()
	if err := seed.Login("username", "password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := seed.Select(DefaultMailbox, false); err != nil {
		t.Fatalf("select: %v", err)
	}

	// Mark the backend's sample message seen so only seeded ones are unread.
	all := new(imap.SeqSet)
	all.AddRange(1, 0)
	if err := seed.UidStore(all, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil); err != nil {
		t.Fatalf("store: %v", err)
	}

	for _, raw := range raws {
		if err := seed.Append(DefaultMailbox, nil, time.Now(), bytes.NewBufferString(raw)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return addr
}

func testConfig(addr string) Config {
	return Config{Addr: addr, Username: "username", Password: "password", Insecure: true}
}

func TestGateway_ListGetMarkRead(t *testing.T) {
	plain := "From: resident@example.org\r\n" +
		"Subject: Water supply cut\r\n" +
		"Date: Wed, 11 Mar 2026 07:00:00 +0530\r\n" +
		"\r\n" +
		"No water in Zone 3 since yesterday.\r\n"
	addr := startServer(t, plain, multipartComplaint)

	gw, tok, err := NewConnector(testConfig(addr)).Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer gw.(io.Closer).Close()
	if tok != nil {
		t.Errorf("token = %+v, want passthrough nil", tok)
	}

	ctx := context.Background()
	ids, err := gw.List(ctx, "ignored", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 unseen", ids)
	}

	msg, err := gw.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if msg.Subject != "Water supply cut" || msg.Snippet != "No water in Zone 3 since yesterday." {
		t.Errorf("msg = %+v", msg)
	}

	// Get peeks, so both are still unseen.
	if again, _ := gw.List(ctx, "", 10); len(again) != 2 {
		t.Errorf("after Get: %v unseen, want 2", again)
	}

	if err := gw.MarkRead(ctx, ids[0]); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	left, err := gw.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(left) != 1 || left[0] != ids[1] {
		t.Errorf("after MarkRead: %v, want [%s]", left, ids[1])
	}
}

func TestGateway_ListRespectsMax(t *testing.T) {
	raw := "Subject: Pothole\r\n\r\nDeep pothole.\r\n"
	addr := startServer(t, raw, raw, raw)

	gw, _, err := NewConnector(testConfig(addr)).Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer gw.(io.Closer).Close()

	ids, err := gw.List(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2", ids)
	}
}

func TestGateway_GetUnknownUID(t *testing.T) {
	addr := startServer(t)

	gw, _, err := NewConnector(testConfig(addr)).Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer gw.(io.Closer).Close()

	if _, err := gw.Get(context.Background(), "9999"); err == nil {
		t.Error("expected error for unknown uid")
	}
	if _, err := gw.Get(context.Background(), "not-a-uid"); err == nil {
		t.Error("expected error for malformed uid")
	}
}

func TestConnector_Errors(t *testing.T) {
	if _, _, err := NewConnector(Config{}).Connect(context.Background(), nil); !errors.Is(err, auth.ErrNotConfigured) {
		t.Errorf("empty config: err = %v, want ErrNotConfigured", err)
	}

	addr := startServer(t)
	cfg := testConfig(addr)
	cfg.Password = "wrong"
	if _, _, err := NewConnector(cfg).Connect(context.Background(), nil); err == nil {
		t.Error("expected login failure")
	}

	cfg = testConfig(addr)
	cfg.Mailbox = "Nope"
	if _, _, err := NewConnector(cfg).Connect(context.Background(), nil); err == nil {
		t.Error("expected select failure")
	}
}
