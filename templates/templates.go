package templates

import _ "embed"

var (
	//go:embed resource/help.txt
	Help string
	//go:embed resource/unexpectedError.txt
	UnexpectedError string
	//go:embed resource/notAllowed.txt
	NotAllowed string
	//go:embed resource/created.txt
	Created string
	//go:embed resource/alreadyActive.txt
	AlreadyActive string
	//go:embed resource/notActive.txt
	NotActive string
	//go:embed resource/stopped.txt
	Stopped string
	//go:embed resource/refreshed.txt
	Refreshed string
	//go:embed resource/relocated.txt
	Relocated string
	//go:embed resource/channelMismatch.txt
	ChannelMismatch string
	//go:embed resource/statsUsage.txt
	StatsUsage string
)
