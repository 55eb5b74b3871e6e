package buzzer

import "errors"

var (
	errDisabled          = errors.New("buzzer: fault budget exhausted, driver disabled")
	errBadGpiofindOutput = errors.New("buzzer: unexpected gpiofind output")
)
