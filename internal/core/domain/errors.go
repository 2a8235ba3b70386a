package domain

import "errors"

var (
	ErrUnknownStrategy = errors.New("unsupported strategy")
	ErrNodeExists      = errors.New("node id already registered")
)

func IsUnknownStrategyError(err error) bool {
	return errors.Is(err, ErrUnknownStrategy)
}

func IsNodeExistsError(err error) bool {
	return errors.Is(err, ErrNodeExists)
}
