package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/heyxyz/heycache"
)

func TestAdapter(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)
	l := New(base, "ratelimit")

	l.Debug("filtered", nil)
	l.Warn("rate limiter store unavailable", heycache.Fields{"limiter": "impressions", "err": errors.New("refused")})

	if len(hook.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(hook.Entries))
	}
	e := hook.LastEntry()
	if e.Level != logrus.WarnLevel || e.Message != "rate limiter store unavailable" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Data["limiter"] != "impressions" || e.Data["component"] != "ratelimit" {
		t.Fatalf("data = %v", e.Data)
	}
	if err, _ := e.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "refused" {
		t.Fatalf("error field = %v", e.Data[logrus.ErrorKey])
	}
}
