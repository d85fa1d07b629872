package impl

import (
	"context"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s *srv) AddNote(ctx context.Context, actor entities.Identity, target string, p service.NoteParams) (*entities.StickyNote, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	text := s.clean(p.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty note", service.ErrInvalidArgument)
	}

	blocked, err := s.store.Get(ctx, schema.MemberPath(target, entities.Blocks, actor.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to check block: %w", err)
	}

	if blocked.Exists {
		return nil, service.ErrForbidden
	}

	author, err := s.store.Get(ctx, schema.UserPath(actor.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}

	var name, avatar string
	if author.Exists {
		u := schema.UserFromDoc(author)
		name, avatar = u.Name, u.ProfileImage
	}

	id := docstore.NewID()
	path := schema.NotePath(target, id)

	if _, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Merge(path, map[string]interface{}{
			schema.NoteID:              id,
			schema.NoteAuthorID:        actor.ID,
			schema.NoteAuthorName:      name,
			schema.NoteAuthorAvatarURL: avatar,
			schema.NoteText:            text,
			schema.NoteColor:           int64(p.Color),
			schema.NotePinned:          false,
			schema.NoteCreatedAt:       docstore.ServerTimestamp,
		}),
	}); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	d, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return schema.StickyNoteFromDoc(d), nil
}

func (s *srv) UpdateNote(ctx context.Context, actor entities.Identity, target, noteID string, p service.UpdateNoteParams) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	fields := make(map[string]interface{})
	if p.Text != nil {
		text := s.clean(*p.Text)
		if text == "" {
			return fmt.Errorf("%w: empty note", service.ErrInvalidArgument)
		}
		fields[schema.NoteText] = text
	}
	if p.Color != nil {
		fields[schema.NoteColor] = int64(*p.Color)
	}
	if p.Pinned != nil {
		fields[schema.NotePinned] = *p.Pinned
	}

	if len(fields) == 0 {
		return nil
	}

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(schema.NotePath(target, noteID))
		if err != nil {
			return fmt.Errorf("failed to get note: %w", err)
		}

		if !d.Exists {
			return notFound("note", noteID)
		}

		note := schema.StickyNoteFromDoc(d)
		if (p.Text != nil || p.Color != nil) && note.AuthorID != actor.ID {
			return service.ErrForbidden
		}
		if p.Pinned != nil && target != actor.ID {
			return service.ErrForbidden
		}

		tx.Apply(docstore.Update(d.Path, fields))

		return nil
	}); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	return nil
}

func (s *srv) DeleteNote(ctx context.Context, actor entities.Identity, target, noteID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(schema.NotePath(target, noteID))
		if err != nil {
			return fmt.Errorf("failed to get note: %w", err)
		}

		if !d.Exists {
			return notFound("note", noteID)
		}

		if schema.StickyNoteFromDoc(d).AuthorID != actor.ID && target != actor.ID {
			return service.ErrForbidden
		}

		tx.Apply(docstore.Delete(d.Path))

		return nil
	}); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return nil
}

func (s *srv) ListNotes(ctx context.Context, target string) ([]*entities.StickyNote, error) {
	docs, err := s.store.Query(ctx, service.NotesQuery(target))
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}

	out := make([]*entities.StickyNote, len(docs))
	for i, d := range docs {
		out[i] = schema.StickyNoteFromDoc(d)
	}

	entities.SortStickyNotes(out)

	return out, nil
}
