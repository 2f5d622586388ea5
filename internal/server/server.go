// Package server connects a fs.FileSystem to the kernel. It reads raw
// requests from a bazil.org/fuse connection, dispatches them by type and
// turns the results into replies.
package server

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"passfs/internal/fs"
	"passfs/internal/logging"
	"passfs/internal/state"

	"bazil.org/fuse"
)

var (
	logger = logging.GetLogger().WithPrefix("fuse")
)

// Server dispatches requests from one FUSE connection.
type Server struct {
	fs fs.FileSystem
	wg sync.WaitGroup
}

// New returns a server dispatching into fsys.
func New(fsys fs.FileSystem) *Server {
	return &Server{fs: fsys}
}

// Serve reads requests from conn until the filesystem is unmounted. Each
// request is handled on its own goroutine; fsys is responsible for
// serialising access to its state.
func (s *Server) Serve(ctx context.Context, conn *fuse.Conn) error {
	defer s.wg.Wait()

	for {
		req, err := conn.ReadRequest()
		if err != nil {
			if err == io.EOF {
				logger.Debug("Connection closed")
				return nil
			}
			return fmt.Errorf("reading fuse request: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(ctx, req)
		}()
	}
}

func (s *Server) serve(ctx context.Context, req fuse.Request) {
	logger.Trace("<- %v", req)

	defer func() {
		if rec := recover(); rec != nil {
			buf := make([]byte, 1<<16)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Error("Panic in handler for %v: %v\n%s", req, rec, buf)
			req.RespondError(fuse.EIO)
		}
	}()

	s.dispatch(ctx, req)
}

// fail replies to req with the errno for err.
func fail(req fuse.Request, err error) {
	errno := fuse.Errno(fs.ToErrno(err))
	logger.Debug("-> %v: %s (%v)", req.Hdr(), errno.ErrnoName(), err)
	req.RespondError(errno)
}

func (s *Server) dispatch(ctx context.Context, req fuse.Request) {
	switch r := req.(type) {
	case *fuse.GetattrRequest:
		resp, err := s.getattr(ctx, r)
		if err != nil {
			fail(r, err)
			return
		}
		r.Respond(resp)

	case *fuse.LookupRequest:
		resp, err := s.lookup(ctx, r)
		if err != nil {
			fail(r, err)
			return
		}
		r.Respond(resp)

	case *fuse.ReadlinkRequest:
		target, err := s.readlink(ctx, r)
		if err != nil {
			fail(r, err)
			return
		}
		r.Respond(target)

	case *fuse.OpenRequest:
		resp, err := s.open(ctx, r)
		if err != nil {
			fail(r, err)
			return
		}
		r.Respond(resp)

	case *fuse.ReadRequest:
		resp, err := s.read(ctx, r)
		if err != nil {
			fail(r, err)
			return
		}
		r.Respond(resp)

	case *fuse.ReleaseRequest:
		s.release(ctx, r)
		r.Respond()

	case *fuse.CreateRequest:
		fail(r, s.fs.Create(ctx, state.Inode(r.Node), r.Name))

	case *fuse.SetattrRequest:
		fail(r, s.fs.SetAttr(ctx, state.Inode(r.Node)))

	case *fuse.SetxattrRequest:
		fail(r, s.fs.SetXAttr(ctx, state.Inode(r.Node), r.Name, r.Xattr))

	case *fuse.StatfsRequest:
		fail(r, s.fs.StatFS(ctx, state.Inode(r.Node)))

	case *fuse.WriteRequest, *fuse.MkdirRequest, *fuse.MknodRequest,
		*fuse.SymlinkRequest, *fuse.LinkRequest, *fuse.RemoveRequest,
		*fuse.RenameRequest, *fuse.RemovexattrRequest:
		fail(r, fs.NewError(fmt.Sprintf("%T", r), "", fs.ErrReadOnly))

	case *fuse.GetxattrRequest, *fuse.ListxattrRequest:
		r.RespondError(fuse.ENOTSUP)

	// Inodes stay mapped until their path disappears, so forget needs
	// no bookkeeping.
	case *fuse.ForgetRequest:
		r.Respond()

	case *fuse.FlushRequest:
		r.Respond()

	// Requests are never long-running enough to be worth cancelling.
	case *fuse.InterruptRequest:
		r.Respond()

	case *fuse.DestroyRequest:
		logger.Info("Kernel requested filesystem teardown")
		r.Respond()

	default:
		logger.Debug("Unsupported request %v", req)
		req.RespondError(fuse.ENOSYS)
	}
}

func (s *Server) getattr(ctx context.Context, r *fuse.GetattrRequest) (*fuse.GetattrResponse, error) {
	attr, err := s.fs.GetAttr(ctx, state.Inode(r.Node))
	if err != nil {
		return nil, err
	}
	return &fuse.GetattrResponse{Attr: fuseAttr(attr)}, nil
}

func (s *Server) lookup(ctx context.Context, r *fuse.LookupRequest) (*fuse.LookupResponse, error) {
	attr, err := s.fs.Lookup(ctx, state.Inode(r.Node), r.Name)
	if err != nil {
		return nil, err
	}
	return &fuse.LookupResponse{
		Node:       fuse.NodeID(attr.Inode),
		EntryValid: 0,
		Attr:       fuseAttr(attr),
	}, nil
}

func (s *Server) readlink(ctx context.Context, r *fuse.ReadlinkRequest) (string, error) {
	return s.fs.ReadLink(ctx, state.Inode(r.Node))
}

func (s *Server) open(ctx context.Context, r *fuse.OpenRequest) (*fuse.OpenResponse, error) {
	var (
		h   state.Handle
		err error
	)
	if r.Dir {
		h, err = s.fs.OpenDir(ctx, state.Inode(r.Node))
	} else {
		h, err = s.fs.Open(ctx, state.Inode(r.Node), int(r.Flags))
	}
	if err != nil {
		return nil, err
	}
	return &fuse.OpenResponse{Handle: fuse.HandleID(h)}, nil
}

func (s *Server) read(ctx context.Context, r *fuse.ReadRequest) (*fuse.ReadResponse, error) {
	if r.Dir {
		return s.readdir(ctx, r)
	}
	data, err := s.fs.Read(ctx, state.Handle(r.Handle), r.Offset, r.Size)
	if err != nil {
		return nil, err
	}
	return &fuse.ReadResponse{Data: data}, nil
}

// readdir fills a reply of at most r.Size bytes. When an entry fails part
// way through, the entries already encoded are still returned.
//
// The Off of each dirent is its position within this reply, and a later
// non-zero offset only continues the handle's stream. A seekdir to an
// earlier telldir value therefore resumes where the stream stands, not at
// the requested entry. Offset 0 restarts the listing.
func (s *Server) readdir(ctx context.Context, r *fuse.ReadRequest) (*fuse.ReadResponse, error) {
	buf := newDirentBuffer(r.Size)
	err := s.fs.ReadDir(ctx, state.Handle(r.Handle), r.Offset, buf.add)
	if err != nil {
		if len(buf.data) == 0 {
			return nil, err
		}
		logger.Debug("readdir on %v stopped early: %v", state.Handle(r.Handle), err)
	}
	return &fuse.ReadResponse{Data: buf.data}, nil
}

func (s *Server) release(ctx context.Context, r *fuse.ReleaseRequest) {
	if r.Dir {
		s.fs.ReleaseDir(ctx, state.Handle(r.Handle))
	} else {
		s.fs.Release(ctx, state.Handle(r.Handle))
	}
}
