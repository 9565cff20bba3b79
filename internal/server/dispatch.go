// dispatch.go implements C3: routing each parsed command to the
// supervisor/bus/logtail operation it names and writing back a JSON reply
// (spec §4.3-§4.9). Every function here runs on the reactor goroutine.
package server

import (
	"github.com/goccy/go-json"

	"github.com/kforslund/ubervisor/internal/logtail"
	"github.com/kforslund/ubervisor/internal/persist"
	"github.com/kforslund/ubervisor/internal/wire"
)

func (s *Server) dispatch(cmd inboundCmd) {
	var reply interface{}

	switch cmd.tag {
	case wire.TagSpawn:
		reply = s.handleSpawn(cmd.body)
	case wire.TagDelete:
		reply = s.handleDelete(cmd.body)
	case wire.TagKill:
		reply = s.handleKill(cmd.body)
	case wire.TagGetC:
		reply = s.handleGetConfig(cmd.body)
	case wire.TagList:
		reply = s.handleList()
	case wire.TagUpdate:
		reply = s.handleUpdate(cmd.body)
	case wire.TagPids:
		reply = s.handlePIDs(cmd.body)
	case wire.TagRead:
		reply = s.handleRead(cmd.body)
	case wire.TagSubs:
		reply = s.handleSubscribe(cmd.c, cmd.cid, cmd.body)
	case wire.TagDump:
		reply = s.handleDump()
	case wire.TagExit:
		reply = ok()
		cmd.c.Send(cmd.cid, encodeReply(reply))
		s.Shutdown()
		return
	default:
		reply = fail("unknown command tag: " + cmd.tag)
	}

	cmd.c.Send(cmd.cid, encodeReply(reply))
}

func (s *Server) handleSpawn(body []byte) Reply {
	var req SpawnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fail("bad SPWN body: " + err.Error())
	}
	if req.Name == "" {
		return fail("name is required")
	}
	if err := s.sup.Spawn(req.toGroup()); err != nil {
		return failErr(err)
	}
	return ok()
}

func (s *Server) handleDelete(body []byte) KillReply {
	var req DeleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return KillReply{Reply: fail("bad DELE body: " + err.Error())}
	}
	pids, err := s.sup.PIDs(req.Name)
	if err != nil {
		return KillReply{Reply: failErr(err)}
	}
	if err := s.sup.Delete(req.Name); err != nil {
		return KillReply{Reply: failErr(err)}
	}
	return KillReply{Reply: ok(), PIDs: pids}
}

func (s *Server) handleKill(body []byte) KillReply {
	var req KillRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return KillReply{Reply: fail("bad KILL body: " + err.Error())}
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	pids, err := s.sup.Kill(req.Name, index, req.KillSig)
	if err != nil {
		return KillReply{Reply: failErr(err)}
	}
	return KillReply{Reply: ok(), PIDs: pids}
}

func (s *Server) handleGetConfig(body []byte) GetConfigReply {
	var req GetConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GetConfigReply{Reply: fail("bad GETC body: " + err.Error())}
	}
	g, found := s.sup.Get(req.Name)
	if !found {
		return GetConfigReply{Reply: fail("unknown group " + req.Name)}
	}
	return GetConfigReply{Reply: ok(), Group: g}
}

func (s *Server) handleList() ListReply {
	return ListReply{Reply: ok(), Names: s.sup.Names()}
}

func (s *Server) handleUpdate(body []byte) Reply {
	var req UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fail("bad UPDT body: " + err.Error())
	}
	if err := s.sup.Update(req.Name, req.toPatch()); err != nil {
		return failErr(err)
	}
	return ok()
}

func (s *Server) handlePIDs(body []byte) PIDsReply {
	var req PIDsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return PIDsReply{Reply: fail("bad PIDS body: " + err.Error())}
	}
	pids, err := s.sup.PIDs(req.Name)
	if err != nil {
		return PIDsReply{Reply: failErr(err)}
	}
	return PIDsReply{Reply: ok(), PIDs: pids}
}

func (s *Server) handleRead(body []byte) ReadReply {
	var req ReadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ReadReply{Reply: fail("bad READ body: " + err.Error())}
	}

	path, err := s.sup.LogPath(req.Name, req.Index, req.Stream)
	if err != nil {
		return ReadReply{Reply: failErr(err)}
	}

	res, err := logtail.Read(path, req.Offset, req.Length, s.cfg.MaxLogReadBytes)
	if err != nil {
		return ReadReply{Reply: failErr(err)}
	}
	return ReadReply{Reply: ok(), Log: res.Log, FSize: res.FSize}
}

func (s *Server) handleSubscribe(c *conn, cid uint16, body []byte) Reply {
	var req SubscribeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fail("bad SUBS body: " + err.Error())
	}
	if req.Ident == 0 {
		s.bus.UnsubscribeSink(c)
		s.metrics.SetEventSubscribers(s.bus.Count())
		return ok()
	}
	s.bus.Subscribe(req.Ident, cid, c)
	s.metrics.SetEventSubscribers(s.bus.Count())
	return ok()
}

func (s *Server) handleDump() Reply {
	if err := persist.Dump(s.cfg.DumpPath, s.sup.All()); err != nil {
		return failErr(err)
	}
	return ok()
}
