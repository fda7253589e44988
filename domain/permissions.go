package domain

// CanTake reports whether the viewer may claim the task: the viewer must
// have a participant identity on this board and the task must be unassigned.
func (b *Board) CanTake(viewerParticipantID string, t Task) bool {
	return viewerParticipantID != "" && t.Assignee == ""
}

// CanChangeStatus reports whether the viewer may transition the task's
// status: event owners always may, otherwise only the assignee.
func (b *Board) CanChangeStatus(viewerParticipantID string, t Task) bool {
	if b.IsOwner {
		return true
	}
	return viewerParticipantID != "" && t.Assignee == viewerParticipantID
}

// BlockedDependencies returns the ids in t.DependsOn that do not resolve to
// a done task. A dependency that cannot be found on the board counts as
// blocking.
func (b *Board) BlockedDependencies(t Task) []string {
	var blocked []string
	for _, id := range t.DependsOn {
		dep := b.FindTask(id)
		if dep == nil || dep.Status != StatusDone {
			blocked = append(blocked, id)
		}
	}
	return blocked
}
