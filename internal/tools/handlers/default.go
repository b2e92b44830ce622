package handlers

import "anvil-cli/internal/tools"

// Default returns the built-in tool handlers rooted at workdir.
func Default(workdir string) []tools.Handler {
	return []tools.Handler{
		FileReadHandler{Workdir: workdir},
		FileWriteHandler{Workdir: workdir},
		ListFilesHandler{Workdir: workdir},
		FindFilesHandler{Workdir: workdir},
		SearchCodeHandler{Workdir: workdir},
		TerminalHandler{Workdir: workdir},
	}
}
