package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	rundebug "runtime/debug"
	"time"

	"golang.org/x/term"

	"github.com/jfjallid/golog"

	"smbls/smb"
)

var log = golog.Get("")
var release string = "0.1"

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printFiles(files []smb.SharedFile) {
	for _, file := range files {
		fileType := "file"
		if file.IsDir {
			fileType = "dir"
		}
		lastWrite := file.LastWriteTime.Format("Mon Jan 2 15:04:05 MST 2006")
		fmt.Printf("%-4s  %10d  %-30s  %s\n", fileType, file.Size, lastWrite, file.Name)
	}
	fmt.Println()
}

var helpMsg = `
    Usage: ` + os.Args[0] + ` [options]

    options:
          --host       Hostname or ip address of remote server
      -p, --port       SMB Port (default 445)
      -s, --share      Name of the share to connect to
          --dir        Directory on the share to list (default is the share root)
          --url        smb://[[domain;]user[:pass]@]host[:port]/share[/path]
                       shorthand, replaces the individual options above
      -d, --domain     Domain name to use for login
      -u, --user       Username
      -P, --pass       Password
          --hash       Hex encoded NT Hash for user password
          --local      Authenticate as a local user instead of domain user
      -n, --null       Attempt null session authentication
      -t, --timeout    Dial timeout in seconds (default 5)
          --debug      Enable debug logging
      -v, --version    Show version
`

func main() {
	var host, username, password, hash, domain, share, dir, rawurl string
	var port, dialTimeout int
	var debug, localUser, nullSession, version bool

	flag.Usage = func() {
		fmt.Println(helpMsg)
		os.Exit(0)
	}

	flag.StringVar(&host, "host", "", "")
	flag.StringVar(&share, "s", "", "")
	flag.StringVar(&share, "share", "", "")
	flag.StringVar(&dir, "dir", "", "")
	flag.StringVar(&rawurl, "url", "", "")
	flag.StringVar(&username, "u", "", "")
	flag.StringVar(&username, "user", "", "")
	flag.StringVar(&password, "P", "", "")
	flag.StringVar(&password, "pass", "", "")
	flag.StringVar(&hash, "hash", "", "")
	flag.StringVar(&domain, "d", "", "")
	flag.StringVar(&domain, "domain", "", "")
	flag.IntVar(&port, "p", 445, "")
	flag.IntVar(&port, "port", 445, "")
	flag.BoolVar(&debug, "debug", false, "")
	flag.BoolVar(&localUser, "local", false, "")
	flag.IntVar(&dialTimeout, "t", 5, "")
	flag.IntVar(&dialTimeout, "timeout", 5, "")
	flag.BoolVar(&nullSession, "n", false, "")
	flag.BoolVar(&nullSession, "null", false, "")
	flag.BoolVar(&version, "v", false, "")
	flag.BoolVar(&version, "version", false, "")

	flag.Parse()

	if debug {
		golog.Set("smbls/smb", "smb", golog.LevelDebug, golog.LstdFlags|golog.Lshortfile, golog.DefaultOutput)
		golog.Set("smbls/ntlmssp", "ntlmssp", golog.LevelDebug, golog.LstdFlags|golog.Lshortfile, golog.DefaultOutput)
		log.SetFlags(golog.LstdFlags | golog.Lshortfile)
		log.SetLogLevel(golog.LevelDebug)
	} else {
		golog.Set("smbls/smb", "smb", golog.LevelError, golog.LstdFlags|golog.Lshortfile, golog.DefaultOutput)
		golog.Set("smbls/ntlmssp", "ntlmssp", golog.LevelError, golog.LstdFlags|golog.Lshortfile, golog.DefaultOutput)
	}

	if version {
		fmt.Printf("Version: %s\n", release)
		bi, ok := rundebug.ReadBuildInfo()
		if !ok {
			log.Errorln("Failed to read build info to locate version of imported modules")
		}
		for _, m := range bi.Deps {
			fmt.Printf("Package: %s, Version: %s\n", m.Path, m.Version)
		}
		return
	}

	var options smb.Options
	var err error

	if rawurl != "" {
		options, err = smb.ParseURL(rawurl)
		if err != nil {
			log.Errorln(err)
			return
		}
		host = options.Host
		username = options.User
		password = options.Password
		if options.Domain != "" {
			domain = options.Domain
		}
	} else {
		if host == "" {
			log.Errorln("Must specify a hostname")
			flag.Usage()
			return
		}
		if share == "" {
			log.Errorln("Must specify a share name")
			flag.Usage()
			return
		}
		options = smb.Options{
			Host:  host,
			Port:  port,
			Share: share,
			Path:  dir,
		}
	}

	if dialTimeout < 1 {
		log.Errorln("Valid value for the timeout is > 0 seconds")
		return
	}
	options.DialTimeout = time.Duration(dialTimeout) * time.Second

	var hashBytes []byte
	if hash != "" {
		hashBytes, err = hex.DecodeString(hash)
		if err != nil {
			fmt.Println("Failed to decode hash")
			log.Errorln(err)
			return
		}
	}

	if (password == "") && (hashBytes == nil) {
		if (username != "") && (!nullSession) {
			// Check if password is already specified to be empty
			if !isFlagSet("P") && !isFlagSet("pass") {
				fmt.Printf("Enter password: ")
				passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Println()
				if err != nil {
					log.Errorln(err)
					return
				}
				password = string(passBytes)
			}
		}
	}

	options.User = username
	options.Password = password
	options.Hash = hashBytes
	if domain != "" {
		options.Domain = domain
	}
	options.NullSession = nullSession
	if localUser {
		options.Initiator = &smb.NTLMInitiator{
			User:        username,
			Password:    password,
			Hash:        hashBytes,
			Domain:      domain,
			LocalUser:   true,
			NullSession: nullSession,
		}
	}

	session, err := smb.NewSession(options)
	if err != nil {
		log.Criticalln(err)
		return
	}
	if err := session.Connect(); err != nil {
		log.Criticalln(err)
		return
	}
	defer session.Close()

	if session.IsAuthenticated {
		log.Noticeln("[+] Login successful")
	}

	files, err := session.Enumerate(options.Path)
	if err != nil {
		log.Errorln(err)
		return
	}

	fmt.Printf("#### \\\\%s\\%s\\%s ####\n", options.Host, options.Share, options.Path)
	printFiles(files)
}
