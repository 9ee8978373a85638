package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"faciliroom/internal/client"
	"faciliroom/internal/models"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "faciliroom server base URL")
	name := flag.String("name", "", "display name (stored for later runs)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	api := client.NewAPIClient(*serverURL)
	identity, err := signIn(api, *name)
	if err != nil {
		log.Fatalf("sign-in failed: %v", err)
	}

	switch args[0] {
	case "create":
		room, err := api.CreateRoom(identity.Name)
		if err != nil {
			log.Fatalf("failed to create room: %v", err)
		}
		fmt.Printf("room created: %s\nshare this id with the other participants\n", room.ID)
		setupRoom(api, room.ID)
		runDiscussion(api, identity, room.ID)

	case "join":
		if len(args) < 2 {
			usage()
		}
		roomID := args[1]
		if _, err := api.JoinRoom(roomID, identity.Name); err != nil {
			log.Fatalf("failed to join room: %v", err)
		}
		runDiscussion(api, identity, roomID)

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  facilicli [-server URL] [-name NAME] create
  facilicli [-server URL] [-name NAME] join ROOM_ID

during a discussion:
  type a line to send it as a chat message
  /done  mark the current step finished
  /quit  leave the room`)
	os.Exit(2)
}

// signIn loads the persisted identity (uid + nickname) when there is one,
// re-authenticates it for this run, and persists any changes.
func signIn(api *client.APIClient, name string) (client.Identity, error) {
	identity, err := client.LoadIdentity()
	if err != nil {
		identity = client.Identity{}
	}
	if name != "" {
		identity.Name = name
	}
	if identity.Name == "" {
		fmt.Print("nickname: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		identity.Name = strings.TrimSpace(line)
	}
	if identity.Name == "" {
		return client.Identity{}, errors.New("a nickname is required")
	}

	uid, err := api.SignInAnonymously(identity.UID)
	if err != nil {
		return client.Identity{}, err
	}
	identity.UID = uid

	if err := client.SaveIdentity(identity); err != nil {
		log.Printf("could not save identity: %v", err)
	}
	return identity, nil
}

// setupRoom walks the creator through topic and duration, which generates the
// agenda and starts the discussion for everyone in the room.
func setupRoom(api *client.APIClient, roomID string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("discussion topic: ")
		topicLine, _ := reader.ReadString('\n')
		topic := strings.TrimSpace(topicLine)

		fmt.Print("total time (minutes): ")
		durLine, _ := reader.ReadString('\n')
		duration, _ := strconv.Atoi(strings.TrimSpace(durLine))

		if topic == "" || duration <= 0 {
			fmt.Println("both a topic and a positive number of minutes are required")
			continue
		}

		if _, err := api.UpdateSettings(roomID, topic, duration); err != nil {
			fmt.Printf("could not start the discussion: %v\ntry again\n", err)
			continue
		}
		return
	}
}

func runDiscussion(api *client.APIClient, identity client.Identity, roomID string) {
	session, err := client.OpenRoomSession(api, identity, roomID)
	if err != nil {
		if errors.Is(err, client.ErrRoomNotFound) {
			log.Fatalf("room %s does not exist", roomID)
		}
		log.Fatalf("could not open session: %v", err)
	}
	defer session.Close()

	done := make(chan struct{})
	go render(session, done)

	reader := bufio.NewScanner(os.Stdin)
	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		switch line {
		case "":
			continue
		case "/quit":
			close(done)
			return
		case "/done":
			if err := session.MarkFinished(); err != nil {
				fmt.Printf("could not mark finished: %v\n", err)
			}
		default:
			if err := session.SendMessage(line); err != nil && !errors.Is(err, client.ErrEmptyMessage) {
				fmt.Printf("could not send: %v\n", err)
			}
		}

		if session.Snapshot().Phase == client.PhaseComplete {
			close(done)
			return
		}
	}
	close(done)
}

// render prints messages and step transitions as they arrive.
func render(session *client.RoomSession, done <-chan struct{}) {
	printed := 0
	lastStep := -1

	for {
		select {
		case <-done:
			return
		case <-session.Updates():
		}

		st := session.Snapshot()

		if st.Phase == client.PhaseActive && st.CurrentStep != lastStep {
			lastStep = st.CurrentStep
			step := st.Agenda[st.CurrentStep]
			fmt.Printf("\n=== step %d/%d: %s (%s) ===\n",
				st.CurrentStep+1, len(st.Agenda), step.StepName, formatTime(st.TimeLeft))
		}

		for ; printed < len(st.Messages); printed++ {
			msg := st.Messages[printed]
			if msg.Author == models.FacilitatorName {
				fmt.Printf("[%s] %s\n", msg.Author, msg.Text)
			} else {
				fmt.Printf("%s: %s\n", msg.Author, msg.Text)
			}
		}

		if st.Phase == client.PhaseActive && st.TotalParticipants > 0 {
			fmt.Printf("  (%d/%d finished, %s left)\n",
				st.FinishedCount, st.TotalParticipants, formatTime(st.TimeLeft))
		}

		if st.Phase == client.PhaseComplete {
			fmt.Println("\ndiscussion complete, press enter to leave")
			if err := session.FinishRoom(); err != nil {
				log.Printf("could not mark room finished: %v", err)
			}
			return
		}
	}
}

func formatTime(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
