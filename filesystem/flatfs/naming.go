package flatfs

import "strings"

// parseCanonicalName splits a path of the form "/NAME.EXT" into its name
// and extension parts, validating the same constraints as the original's
// fname-splitting routine: a leading slash, a non-empty name of at most
// 8 characters, a separating dot, and a non-empty extension of at most 3
// characters. There are no subdirectories, so exactly one slash and one
// dot are permitted.
func parseCanonicalName(path string) (name, extension string, err error) {
	if len(path) < 2 || path[0] != '/' {
		return "", "", ErrInvalidArgument
	}
	rest := path[1:]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return "", "", ErrInvalidArgument
	}
	name = rest[:dot]
	extension = rest[dot+1:]
	if len(name) > maxNameLen || len(extension) > maxExtLen {
		return "", "", ErrInvalidArgument
	}
	if strings.ContainsAny(name, ".") || strings.ContainsAny(extension, "./") || strings.ContainsRune(name, '/') {
		return "", "", ErrInvalidArgument
	}
	return name, extension, nil
}
