package prompt

import (
	"os"
	"os/user"
	"strings"

	"github.com/fatih/color"
)

// Info is what a prompt template can refer to.
type Info struct {
	User string
	Host string
	Cwd  string
	Root bool
}

// Current looks up the user, host and working directory, falling back to
// placeholders for anything that cannot be determined.
func Current() Info {
	info := Info{User: "username", Host: "hostname", Cwd: "?", Root: os.Geteuid() == 0}

	if curUser, err := user.Current(); err == nil {
		info.User = curUser.Username
	}

	if curHostName, err := os.Hostname(); err == nil {
		info.Host = curHostName
	}

	if curCwd, err := os.Getwd(); err == nil {
		info.Cwd = shortenHome(curCwd, os.Getenv("HOME"))
	}

	return info
}

func shortenHome(cwd, home string) string {
	home = strings.TrimSuffix(home, "/")
	switch {
	case home == "":
		return cwd
	case cwd == home:
		return "~"
	case strings.HasPrefix(cwd, home+"/"):
		return "~" + cwd[len(home):]
	default:
		return cwd
	}
}

// Render expands \u (user), \h (host), \w (working directory) and \$ ('#'
// for root, '$' otherwise) in template. Unknown escapes are kept as is.
func (i Info) Render(template string) string {
	var b strings.Builder

	for j := 0; j < len(template); j++ {
		if template[j] != '\\' || j+1 == len(template) {
			b.WriteByte(template[j])
			continue
		}

		switch template[j+1] {
		case 'u':
			b.WriteString(i.User)
		case 'h':
			b.WriteString(i.Host)
		case 'w':
			b.WriteString(i.Cwd)
		case '$':
			if i.Root {
				b.WriteByte('#')
			} else {
				b.WriteByte('$')
			}
		default:
			b.WriteString(template[j : j+2])
		}
		j++
	}

	return b.String()
}

// Render expands template for the current process, in bold green if
// useColor is set.
func Render(template string, useColor bool) string {
	out := Current().Render(template)

	c := color.New(color.FgGreen, color.Bold)
	if useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(out)
}
