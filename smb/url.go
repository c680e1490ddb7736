package smb

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseURL turns an smb:// URL into session options. The accepted
// shape is
//
//	smb://[[domain;]user[:password]@]host[:port]/share[/path]
//
// Omitted credentials fall back to the guest defaults applied by
// NewSession. The first path segment is the share name and is
// required.
func ParseURL(rawurl string) (opts Options, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return opts, fmt.Errorf("invalid URL %q: %w", rawurl, err)
	}
	if u.Scheme != "smb" {
		return opts, fmt.Errorf("invalid URL %q: scheme must be smb", rawurl)
	}
	if u.Hostname() == "" {
		return opts, fmt.Errorf("invalid URL %q: missing host", rawurl)
	}
	opts.Host = u.Hostname()

	if p := u.Port(); p != "" {
		opts.Port, err = strconv.Atoi(p)
		if err != nil {
			return opts, fmt.Errorf("invalid URL %q: bad port", rawurl)
		}
	}

	if u.User != nil {
		user := u.User.Username()
		if domain, rest, found := strings.Cut(user, ";"); found {
			opts.Domain = domain
			user = rest
		}
		opts.User = user
		opts.Password, _ = u.User.Password()
	}

	share, path, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if share == "" {
		return opts, fmt.Errorf("invalid URL %q: missing share name", rawurl)
	}
	opts.Share = share
	opts.Path = path
	return opts, nil
}

// EnumerateURL is the URL flavor of the one-shot Enumerate.
func EnumerateURL(rawurl string) ([]SharedFile, error) {
	opts, err := ParseURL(rawurl)
	if err != nil {
		log.Errorln(err)
		return nil, err
	}
	return Enumerate(opts)
}
