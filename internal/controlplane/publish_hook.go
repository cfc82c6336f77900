package controlplane

import (
	"context"
	"strings"
)

const maxPublishHeaderLen = 512

// applyPublishHeaders sets x-publish-attempted / x-publish-succeeded /
// x-publish-error on the response. err is nil on success or when no
// publish was attempted at all.
func applyPublishHeaders(header headerSetter, attempted, succeeded bool, err error) {
	header.Set("x-publish-attempted", boolHeader(attempted))
	if !attempted {
		return
	}
	header.Set("x-publish-succeeded", boolHeader(succeeded))
	if err != nil {
		header.Set("x-publish-error", sanitizeHeaderValue(err.Error()))
	}
}

type headerSetter interface {
	Set(key, value string)
}

func boolHeader(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// sanitizeHeaderValue collapses an error message to a single line safe to
// put on an HTTP response header: no CR/LF, trimmed, capped at 512 bytes.
func sanitizeHeaderValue(msg string) string {
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxPublishHeaderLen {
		msg = msg[:maxPublishHeaderLen]
	}
	return msg
}

// publishIfNeeded runs Publisher.Publish for envID and writes the publish
// outcome headers on w. should gates whether a publish is attempted at all
// (the exhaustive implicit-publish trigger list lives in each handler).
func (s *Server) publishIfNeeded(ctx context.Context, w headerSetter, envID string, should bool) {
	if !should {
		applyPublishHeaders(w, false, false, nil)
		return
	}
	_, err := s.Publisher.Publish(ctx, envID)
	applyPublishHeaders(w, true, err == nil, err)
}
