package email

import (
	"reflect"
	"testing"
)

func TestNewServiceRequiresConfiguration(t *testing.T) {
	if svc := NewService(Config{}); svc != nil {
		t.Fatal("unconfigured SMTP should yield a nil service")
	}
	if svc := NewService(Config{Host: "smtp.example.com", From: "trip@example.com"}); svc != nil {
		t.Fatal("no recipients should yield a nil service")
	}
	svc := NewService(Config{
		Host:       "smtp.example.com",
		Port:       "587",
		From:       "trip@example.com",
		Recipients: []string{"family@example.com"},
	})
	if svc == nil {
		t.Fatal("fully configured SMTP should yield a service")
	}
}

func TestNilServiceSendIsNoop(t *testing.T) {
	var svc *Service
	if err := svc.SendAnnouncement("Trip", "Maya", "hello"); err != nil {
		t.Fatalf("nil service should silently drop mail, got %v", err)
	}
}

func TestSplitRecipients(t *testing.T) {
	got := SplitRecipients(" a@example.com, ,b@example.com ,")
	want := []string{"a@example.com", "b@example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if SplitRecipients("") != nil {
		t.Fatal("empty input should yield no recipients")
	}
}
