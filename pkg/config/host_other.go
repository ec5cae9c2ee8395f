//go:build !unix

package config

func unameMachine() string {
	return ""
}
