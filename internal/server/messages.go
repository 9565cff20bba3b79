// messages.go defines the JSON request/reply bodies carried after each
// 4-byte command tag (spec §4.3's schema for SPWN/DELE/KILL/GETC/LIST/
// UPDT/SUBS/PIDS/READ/DUMP/EXIT; HELO carries no body).
//
// Grounded on the teacher's internal/proto/messages.go Request/Response
// pair, split one-struct-per-tag instead of one shared struct with many
// optional fields, since ubervisor's tags carry more varied shapes than
// the teacher's single ping/start/list/attach/... request type.
package server

import "github.com/kforslund/ubervisor/internal/supervisor"

// Reply is the common envelope every command tag replies with (spec §4.3:
// "every reply begins with a boolean code and, on failure, a msg"). The
// field is named "code" on the wire to match the original client
// (original_source/python/ubervisor.py checks r['code']).
type Reply struct {
	OK  bool   `json:"code"`
	Msg string `json:"msg,omitempty"`
}

func ok() Reply               { return Reply{OK: true} }
func fail(msg string) Reply   { return Reply{OK: false, Msg: msg} }
func failErr(err error) Reply { return Reply{OK: false, Msg: err.Error()} }

// SpawnRequest is SPWN's body: a full group definition (spec §4.4).
type SpawnRequest struct {
	Name       string   `json:"name"`
	Args       []string `json:"args"`
	Dir        string   `json:"dir,omitempty"`
	Stdout     *string  `json:"stdout"`
	Stderr     *string  `json:"stderr"`
	Instances  int      `json:"instances"`
	KillSig    int      `json:"killsig,omitempty"`
	UID        int      `json:"uid,omitempty"`
	GID        int      `json:"gid,omitempty"`
	Heartbeat  *string  `json:"heartbeat"`
	FatalCB    *string  `json:"fatal_cb"`
	Age        int      `json:"age,omitempty"`
	StdoutPipe *string  `json:"stdout_pipe,omitempty"`
}

func (r SpawnRequest) toGroup() *supervisor.Group {
	uid, gid := r.UID, r.GID
	if uid == 0 {
		uid = -1
	}
	if gid == 0 {
		gid = -1
	}
	return &supervisor.Group{
		Name:       r.Name,
		Args:       r.Args,
		Dir:        r.Dir,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		Instances:  r.Instances,
		KillSig:    r.KillSig,
		UID:        uid,
		GID:        gid,
		Heartbeat:  r.Heartbeat,
		FatalCB:    r.FatalCB,
		Age:        r.Age,
		StdoutPipe: r.StdoutPipe,
	}
}

// DeleteRequest is DELE's body.
type DeleteRequest struct {
	Name string `json:"name"`
}

// KillRequest is KILL's body. A nil or absent Index means "every live
// instance"; an explicit Index (including 0) targets one slot (spec §4.4).
type KillRequest struct {
	Name    string `json:"name"`
	Index   *int   `json:"index"`
	KillSig int    `json:"killsig,omitempty"`
}

// KillReply reports which pids were signaled.
type KillReply struct {
	Reply
	PIDs []int `json:"pids"`
}

// GetConfigRequest is GETC's body.
type GetConfigRequest struct {
	Name string `json:"name"`
}

// GetConfigReply carries a defensive copy of the group's configuration.
type GetConfigReply struct {
	Reply
	Group *supervisor.Group `json:"group,omitempty"`
}

// ListReply is LIST's body: every registered group name (spec §4.4: "order
// is unspecified").
type ListReply struct {
	Reply
	Names []string `json:"names"`
}

// UpdateRequest is UPDT's body; nil/omitted fields leave the current value
// unchanged (spec §4.5 "Update").
type UpdateRequest struct {
	Name       string   `json:"name"`
	Args       []string `json:"args,omitempty"`
	Dir        *string  `json:"dir"`
	Stdout     *string  `json:"stdout"`
	Stderr     *string  `json:"stderr"`
	Instances  *int     `json:"instances"`
	Status     *int     `json:"status"`
	KillSig    *int     `json:"killsig"`
	Heartbeat  *string  `json:"heartbeat"`
	FatalCB    *string  `json:"fatal_cb"`
	Age        *int     `json:"age"`
	StdoutPipe *string  `json:"stdout_pipe"`
}

func (r UpdateRequest) toPatch() supervisor.GroupPatch {
	p := supervisor.GroupPatch{
		Args:       r.Args,
		Dir:        r.Dir,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		Instances:  r.Instances,
		KillSig:    r.KillSig,
		Heartbeat:  r.Heartbeat,
		FatalCB:    r.FatalCB,
		Age:        r.Age,
		StdoutPipe: r.StdoutPipe,
	}
	if r.Status != nil {
		s := supervisor.Status(*r.Status)
		p.Status = &s
	}
	return p
}

// SubscribeRequest is SUBS's body (spec §4.7). An ident of 0 is treated as
// an unsubscribe-all for this connection, since the wire schema has no
// separate UNSB tag.
type SubscribeRequest struct {
	Ident int `json:"ident"`
}

// PIDsRequest is PIDS's body.
type PIDsRequest struct {
	Name string `json:"name"`
}

// PIDsReply carries the currently-live pids.
type PIDsReply struct {
	Reply
	PIDs []int `json:"pids"`
}

// ReadRequest is READ's body (spec §4.8).
type ReadRequest struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Stream string `json:"stream"` // "stdout" or "stderr"
	Offset int64  `json:"offset"`
	Length int    `json:"length"`
}

// ReadReply carries the bounded tail read and the file's current size.
type ReadReply struct {
	Reply
	Log   []byte `json:"log"`
	FSize int64  `json:"fsize"`
}
