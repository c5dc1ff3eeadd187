package autherr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"unrelated", errors.New("boom"), nil},
		{"wrapped network", fmt.Errorf("polling: %w", ErrNetwork), ErrNetwork},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTimeout},
		{"canceled", context.Canceled, ErrCanceled},
		{"detail keeps kind", WithDetail(ErrInvalidCredentials, "bad"), ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "backend detail surfaces verbatim",
			err:      fmt.Errorf("authorize: %w", WithDetail(ErrInvalidCredentials, "用户名或密码错误")),
			wantCode: CodeInvalidCredentials,
			wantMsg:  "用户名或密码错误",
		},
		{
			name:     "generic credentials",
			err:      ErrInvalidCredentials,
			wantCode: CodeInvalidCredentials,
			wantMsg:  "Incorrect username or password. Please re-enter your credentials.",
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("poll: %w", ErrTimeout),
			wantCode: CodeTimeout,
			wantMsg:  "The server took too long to respond. Please try again.",
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: CodeServerError,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Describe(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestDescribeNetworkAndPopupDiffer(t *testing.T) {
	_, network := Describe(ErrNetwork)
	_, popup := Describe(ErrPopupBlocked)
	_, timeout := Describe(ErrTimeout)
	if network == popup || network == timeout || popup == timeout {
		t.Errorf("messages must differ: %q / %q / %q", network, popup, timeout)
	}
}

func TestNewWrapsKind(t *testing.T) {
	err := New(ErrExpired, "device code expired")
	if err.Error() != "device code expired" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrExpired) {
		t.Errorf("New() must wrap its kind")
	}

	detailed := WithDetail(err, "设备码已过期")
	if detailed.Error() != "device code expired: 设备码已过期" {
		t.Errorf("Error() = %q", detailed.Error())
	}
	if !errors.Is(detailed, err) || !errors.Is(detailed, ErrExpired) {
		t.Errorf("WithDetail() must keep the chain")
	}
}
