package dispatch

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Room is a named group of dialogs that can be broadcast to together.
type Room struct {
	name    string
	dialogs map[*Dialog]bool
	mu      sync.RWMutex
	manager *RoomManager
}

type RoomManager struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	logger *logrus.Logger
}

func NewRoomManager(logger *logrus.Logger) *RoomManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &RoomManager{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// Room returns the named room, creating it if needed.
func (rm *RoomManager) Room(name string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if room, exists := rm.rooms[name]; exists {
		return room
	}
	room := &Room{
		name:    name,
		dialogs: make(map[*Dialog]bool),
		manager: rm,
	}
	rm.rooms[name] = room
	return room
}

// GetRoom returns the named room or nil.
func (rm *RoomManager) GetRoom(name string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[name]
}

func (rm *RoomManager) DeleteRoom(name string) {
	rm.mu.Lock()
	room, exists := rm.rooms[name]
	delete(rm.rooms, name)
	rm.mu.Unlock()

	if exists {
		for _, dialog := range room.Dialogs() {
			dialog.Leave(name)
		}
	}
}

func (rm *RoomManager) Rooms() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	names := make([]string, 0, len(rm.rooms))
	for name := range rm.rooms {
		names = append(names, name)
	}
	return names
}

// DialogByID finds a dialog that is a member of any room.
func (rm *RoomManager) DialogByID(id string) *Dialog {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for _, room := range rm.rooms {
		room.mu.RLock()
		for dialog := range room.dialogs {
			if dialog.ID() == id {
				room.mu.RUnlock()
				return dialog
			}
		}
		room.mu.RUnlock()
	}
	return nil
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) addDialog(dialog *Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogs[dialog] = true
	r.manager.logger.WithFields(logrus.Fields{
		"room":     r.name,
		"dialogId": dialog.ID(),
	}).Debug("dialog joined room")
}

func (r *Room) removeDialog(dialog *Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dialogs, dialog)
	r.manager.logger.WithFields(logrus.Fields{
		"room":     r.name,
		"dialogId": dialog.ID(),
	}).Debug("dialog left room")
}

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dialogs)
}

func (r *Room) Has(dialog *Dialog) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dialogs[dialog]
}

func (r *Room) Dialogs() []*Dialog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dialogs := make([]*Dialog, 0, len(r.dialogs))
	for dialog := range r.dialogs {
		dialogs = append(dialogs, dialog)
	}
	return dialogs
}

// Broadcast sends data to every dialog in the room except those in exclude
// and returns how many sends succeeded.
func (r *Room) Broadcast(messageType MessageType, data []byte, exclude ...*Dialog) int {
	excludeMap := make(map[*Dialog]bool, len(exclude))
	for _, d := range exclude {
		excludeMap[d] = true
	}
	sent := 0
	for _, dialog := range r.Dialogs() {
		if excludeMap[dialog] {
			continue
		}
		if err := dialog.Send(messageType, data); err != nil {
			r.manager.logger.WithError(err).WithField("dialogId", dialog.ID()).Warn("failed to send to dialog in room")
			continue
		}
		sent++
	}
	return sent
}

func (r *Room) BroadcastText(text string, exclude ...*Dialog) int {
	return r.Broadcast(MessageText, []byte(text), exclude...)
}
