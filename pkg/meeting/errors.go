package meeting

import "errors"

var (
	ErrMeetingNotFound      = errors.New("meeting: meeting not found")
	ErrMeetingAlreadyOpen   = errors.New("meeting: user already has an open meeting")
	ErrFailedToStartMeeting = errors.New("meeting: failed to start meeting")
	ErrFailedToCloseMeeting = errors.New("meeting: failed to close meeting")
	ErrInvalidMeetingCap    = errors.New("meeting: per-meeting cap must be positive")
)
