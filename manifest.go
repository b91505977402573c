package main

import (
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/sirupsen/logrus"
)

// rewriteManifest turns every relative reference line of an m3u8 playlist into
// an absolute URL resolved against base. Directives, blank lines, absolute
// references and unparsable lines are kept byte for byte.
func rewriteManifest(text string, base *url.URL) string {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		ref, err := url.Parse(trimmed)
		if err != nil || ref.IsAbs() {
			continue
		}

		resolved := base.ResolveReference(ref).String()
		if strings.HasSuffix(line, "\r") {
			resolved += "\r"
		}
		lines[i] = resolved
	}

	return strings.Join(lines, "\n")
}

// describePlaylist reports the playlist kind ("master" or "media") and its
// number of entries. It returns an empty kind when the text does not decode.
func describePlaylist(text string) (kind string, entries int) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		logger.WithError(err).Debug("playlist did not decode")
		return "", 0
	}

	switch listType {
	case m3u8.MASTER:
		masterpl := playlist.(*m3u8.MasterPlaylist)
		for _, variant := range masterpl.Variants {
			if variant != nil && variant.URI != "" {
				entries++
			}
		}
		kind = "master"
	case m3u8.MEDIA:
		mediapl := playlist.(*m3u8.MediaPlaylist)
		for _, segment := range mediapl.Segments {
			if segment != nil && segment.URI != "" {
				entries++
			}
		}
		kind = "media"
	}

	logger.WithFields(logrus.Fields{
		"kind":    kind,
		"entries": entries,
	}).Debug("decoded playlist")

	return kind, entries
}
