package probe

import (
	"fmt"
	"strings"
)

// Status classifies a probe outcome.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Subresult is one component judgement of a probe: the status check, or
// the content check.
type Subresult struct {
	Status Status
	Info   string
}

// Result is the combined judgement of one probe run. Status is the worst
// subresult status; Info concatenates the subresult infos in order.
type Result struct {
	Status     Status
	Info       string
	Subresults []Subresult
}

// infoSeparator joins subresult infos into the combined Info string.
const infoSeparator = "; "

func combine(subs []Subresult) Result {
	status := StatusOK
	infos := make([]string, 0, len(subs))
	for _, s := range subs {
		if s.Status > status {
			status = s.Status
		}
		infos = append(infos, s.Info)
	}
	return Result{
		Status:     status,
		Info:       strings.Join(infos, infoSeparator),
		Subresults: subs,
	}
}
