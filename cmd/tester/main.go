package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chat-relay/domain"
)

// Manual test client for the relay. Logs in, prints everything the server
// pushes and turns stdin lines into envelopes:
//
//	/msg <user> <text>      direct message
//	/group <id> <text>      group message
//	/all <text>             broadcast
//	/create <name> [users]  create a group
//	/leave <id>             leave a group
//	/quit                   logout and exit
func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "localhost:8888", "Relay address")
	username := flag.String("user", "", "Username to log in with")
	flag.Parse()
	if *username == "" {
		log.Fatal("Missing -user")
	}

	// 1. Connect and log in
	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("Cannot reach relay at %s: %v", *addr, err)
	}
	defer conn.Close()

	if err := send(conn, domain.NewLogin(*username)); err != nil {
		log.Fatal("Login send failed: ", err)
	}

	// 2. Print server pushes from a background reader
	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(conn)
		sc.Buffer(make([]byte, 64*1024), 8<<20)
		for sc.Scan() {
			e, err := domain.Decode(sc.Bytes())
			if err != nil {
				color.FgRed.Printf("Undecodable line: %s\n", sc.Text())
				continue
			}
			render(e)
		}
		color.FgRed.Println("Connection closed by relay")
	}()

	// 3. Turn stdin into envelopes until /quit or EOF
	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			_ = send(conn, domain.NewLogout(*username))
			break
		}
		e, err := parse(*username, line)
		if err != nil {
			color.FgRed.Println(err)
			continue
		}
		if err := send(conn, e); err != nil {
			log.Fatal("Send failed: ", err)
		}
	}
	_ = conn.Close()
	<-done
}

func send(conn net.Conn, e domain.Envelope) error {
	line, err := e.Encode()
	if err != nil {
		return err
	}
	_, err = conn.Write(append(line, '\n'))
	return err
}

func parse(username, line string) (domain.Envelope, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/msg":
		target, text, ok := strings.Cut(rest, " ")
		if !ok {
			return domain.Envelope{}, fmt.Errorf("usage: /msg <user> <text>")
		}
		return domain.NewText(username, target, domain.TargetUser, text), nil
	case "/group":
		target, text, ok := strings.Cut(rest, " ")
		if !ok {
			return domain.Envelope{}, fmt.Errorf("usage: /group <id> <text>")
		}
		return domain.NewText(username, target, domain.TargetGroup, text), nil
	case "/all":
		if rest == "" {
			return domain.Envelope{}, fmt.Errorf("usage: /all <text>")
		}
		return domain.NewText(username, "", domain.TargetAll, rest), nil
	case "/create":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return domain.Envelope{}, fmt.Errorf("usage: /create <name> [users...]")
		}
		return domain.NewCreateGroup(username, fields[0], fields[1:]), nil
	case "/leave":
		if rest == "" {
			return domain.Envelope{}, fmt.Errorf("usage: /leave <id>")
		}
		return domain.NewLeaveGroup(username, rest), nil
	default:
		// Bare text goes to everyone
		return domain.NewText(username, "", domain.TargetAll, line), nil
	}
}

func render(e domain.Envelope) {
	switch c := e.Content.(type) {
	case domain.LoginResponseContent:
		if c.Success {
			color.FgGreen.Println("Logged in:", c.Message)
		} else {
			color.FgRed.Println("Login rejected:", c.Message)
		}
	case domain.TextContent:
		color.FgCyan.Printf("[%s -> %s] %s\n", e.Sender, e.TargetType, c.Text)
	case domain.UserListContent:
		printTable([]string{"Online users"},
			lo.Map(c.Users, func(u string, _ int) []string { return []string{u} }))
	case domain.GroupListContent:
		printTable([]string{"Group ID", "Name", "Creator", "Members"},
			lo.Map(c.Groups, func(g domain.GroupInfo, _ int) []string {
				return []string{g.GroupID, g.GroupName, g.Creator, strings.Join(g.Members, ", ")}
			}))
	case domain.GroupCreatedContent:
		color.FgGreen.Printf("Group %q created with id %s (members: %s)\n",
			c.Group.GroupName, c.Group.GroupID, strings.Join(c.Group.Members, ", "))
	case domain.UserJoinContent:
		color.FgYellow.Printf("* %s joined\n", c.Username)
	case domain.UserLeaveContent:
		color.FgYellow.Printf("* %s left\n", c.Username)
	case domain.ErrorContent:
		color.FgRed.Println("Server error:", c.Error)
	default:
		color.FgMagenta.Printf("%s envelope from %s\n", e.Type, e.Sender)
	}
}

func printTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}
