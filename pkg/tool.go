package pkg

import "strings"

// Contains check source have target
func Contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// UniqueWithout 去除空白、重複與 exclude，保留原順序
func UniqueWithout(slice []string, exclude string) []string {
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		v = strings.TrimSpace(v)
		if v == "" || v == exclude || Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
