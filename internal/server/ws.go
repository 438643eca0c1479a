package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"Sightline/internal/protocol"
	"Sightline/internal/scene"
	"Sightline/internal/vision"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one connected host. Perception snapshots go out on a fixed
// cadence; refresh notifications are pushed as passes complete, dropped when
// the client is behind.
type session struct {
	id       string
	conn     *websocket.Conn
	sendTick *time.Ticker
	refresh  chan []scene.EntityID
}

func (s *session) notifyRefresh(changed []scene.EntityID) {
	select {
	case s.refresh <- changed:
	default:
	}
}

func serveWS(h *Hub, w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = "default"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	room := h.GetRoom(roomID)
	s := &session{
		id:       RandId("s"),
		conn:     conn,
		sendTick: time.NewTicker(time.Duration(1000.0/PushHz) * time.Millisecond),
		refresh:  make(chan []scene.EntityID, 8),
	}
	room.addSession(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(data)
			if err != nil {
				log.Printf("session %s: invalid JSON message: %v", s.id, err)
				continue
			}
			if err := dispatch(room, base.Type, data); err != nil {
				log.Printf("session %s: %s: %v", s.id, base.Type, err)
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case changed := <-s.refresh:
				ids := make([]string, 0, len(changed))
				for _, id := range changed {
					ids = append(ids, string(id))
				}
				if err := conn.WriteJSON(protocol.RefreshMsg{Type: protocol.TypeRefresh, Changed: ids}); err != nil {
					log.Printf("session %s: send refresh: %v", s.id, err)
					return
				}
			case <-s.sendTick.C:
				room.Mu.Lock()
				msg := buildPerception(room)
				room.Mu.Unlock()
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("session %s: send perception: %v", s.id, err)
					return
				}
			}
		}
	}()

	<-ctx.Done()
	s.sendTick.Stop()
	conn.Close()
	room.removeSession(s.id)
}

func dispatch(room *Room, msgType string, data []byte) error {
	switch msgType {
	case protocol.TypeSceneLoad:
		var msg protocol.SceneLoadMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleSceneLoad(room, msg)
	case protocol.TypeEntityUpsert:
		var msg protocol.EntityUpsertMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleEntityUpsert(room, msg)
	case protocol.TypeEntityRemove:
		var msg protocol.EntityRemoveMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleEntityRemove(room, msg)
	case protocol.TypeMove:
		var msg protocol.MoveMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleMove(room, msg)
	case protocol.TypeCondition:
		var msg protocol.ConditionMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleCondition(room, msg)
	case protocol.TypeLighting:
		var msg protocol.LightingMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleLighting(room, msg)
	case protocol.TypeOverrideSet:
		var msg protocol.OverrideSetMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleOverrideSet(room, msg)
	case protocol.TypeOverrideClear:
		var msg protocol.OverrideClearMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return handleOverrideClear(room, msg)
	}
	log.Printf("unknown message type %q", msgType)
	return nil
}

// handleSceneLoad replaces the room's scene wholesale and schedules a full
// recomputation. Persisted overrides for surviving entities are restored.
func handleSceneLoad(room *Room, msg protocol.SceneLoadMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	walls := make([]scene.Wall, 0, len(msg.Walls))
	for _, w := range msg.Walls {
		walls = append(walls, wallFromDTO(w))
	}
	lights := make([]scene.LightSource, 0, len(msg.Lights))
	for _, l := range msg.Lights {
		lights = append(lights, lightFromDTO(l))
	}
	darkness := make([]scene.DarknessSource, 0, len(msg.Darkness))
	for _, d := range msg.Darkness {
		darkness = append(darkness, darknessFromDTO(d))
	}
	room.Geo.walls = walls
	room.Geo.lights = lights
	room.Geo.darkness = darkness

	room.World = scene.NewWorld()
	room.Orch.ReplaceWorld(room.World)
	now := time.Now()
	for _, e := range msg.Entities {
		id, err := room.World.ApplyRecord(recordFromDTO(e))
		if err != nil {
			log.Printf("room %s: scene load: %v", room.ID, err)
			continue
		}
		if room.store != nil {
			saved, err := room.store.Load(id)
			if err != nil {
				log.Printf("room %s: override load for %s: %v", room.ID, id, err)
			}
			for _, o := range saved {
				if !o.Expired(now) {
					room.World.Overrides(id).Set(o)
				}
			}
		}
	}

	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventSceneReady}, now)
	return nil
}

func handleEntityUpsert(room *Room, msg protocol.EntityUpsertMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	id, err := room.World.ApplyRecord(recordFromDTO(msg.Entity))
	if err != nil {
		return err
	}
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventMove, Entity: id}, time.Now())
	return nil
}

func handleEntityRemove(room *Room, msg protocol.EntityRemoveMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	id := scene.EntityID(msg.ID)
	room.World.RemoveEntity(id)
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventRemoved, Entity: id}, time.Now())
	return nil
}

func handleMove(room *Room, msg protocol.MoveMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	id := scene.EntityID(msg.ID)
	tr := room.World.Transform(id)
	if tr == nil {
		return scene.ErrUnavailable
	}
	tr.Pos.X = msg.X
	tr.Pos.Y = msg.Y
	if msg.Elevation != nil {
		tr.Elevation = *msg.Elevation
	}
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventMove, Entity: id}, time.Now())
	return nil
}

func handleCondition(room *Room, msg protocol.ConditionMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	id := scene.EntityID(msg.ID)
	conds := room.World.Conditions(id)
	if conds == nil {
		return scene.ErrUnavailable
	}
	if msg.Active {
		conds[scene.Condition(msg.Condition)] = true
	} else {
		delete(conds, scene.Condition(msg.Condition))
	}
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventCondition, Entity: id}, time.Now())
	return nil
}

func handleLighting(room *Room, msg protocol.LightingMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	lights := make([]scene.LightSource, 0, len(msg.Lights))
	for _, l := range msg.Lights {
		lights = append(lights, lightFromDTO(l))
	}
	darkness := make([]scene.DarknessSource, 0, len(msg.Darkness))
	for _, d := range msg.Darkness {
		darkness = append(darkness, darknessFromDTO(d))
	}
	room.Geo.lights = lights
	room.Geo.darkness = darkness

	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventLighting}, time.Now())
	return nil
}

func handleOverrideSet(room *Room, msg protocol.OverrideSetMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	o := &scene.Override{
		Observer: scene.EntityID(msg.Observer),
		Source:   scene.OverrideSource(msg.Source),
	}
	if o.Source == "" {
		o.Source = scene.SourceManual
	}
	switch msg.Kind {
	case "visibility":
		v, ok := scene.ParseVisibility(msg.Value)
		if !ok {
			return scene.ErrUnavailable
		}
		o.Kind = scene.OverrideVisibility
		o.Visibility = v
	case "cover":
		c, ok := scene.ParseCover(msg.Value)
		if !ok {
			return scene.ErrUnavailable
		}
		o.Kind = scene.OverrideCover
		o.Cover = c
	default:
		return scene.ErrUnavailable
	}
	now := time.Now()
	if msg.TTLSeconds > 0 {
		o.ExpiresAt = now.Add(time.Duration(msg.TTLSeconds * float64(time.Second)))
	}

	target := scene.EntityID(msg.Target)
	room.World.Overrides(target).Set(o)
	if room.store != nil {
		if err := room.store.Save(target, o); err != nil {
			log.Printf("room %s: override save: %v", room.ID, err)
		}
	}
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventCondition, Entity: target}, now)
	return nil
}

func handleOverrideClear(room *Room, msg protocol.OverrideClearMsg) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	var kind scene.OverrideKind
	switch msg.Kind {
	case "visibility":
		kind = scene.OverrideVisibility
	case "cover":
		kind = scene.OverrideCover
	default:
		return scene.ErrUnavailable
	}
	target := scene.EntityID(msg.Target)
	observer := scene.EntityID(msg.Observer)
	room.World.Overrides(target).Clear(kind, observer)
	if room.store != nil {
		if err := room.store.Clear(target, kind, observer); err != nil {
			log.Printf("room %s: override clear: %v", room.ID, err)
		}
	}
	room.Orch.Enqueue(vision.ChangeEvent{Kind: vision.EventCondition, Entity: target}, time.Now())
	return nil
}
