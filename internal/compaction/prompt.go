package compaction

// CompressionSystemPrompt is the fixed instruction directing the model to
// emit a <state_snapshot> block. It is a prompt convention, not a parsed
// structure; the runtime stores whatever text the model returns.
const CompressionSystemPrompt = `You are about to have your conversation history compacted. Produce a
single <state_snapshot> XML block that captures everything needed to
continue the task without the full history, using these subsections:

<state_snapshot>
  <overall_goal>One sentence describing the user's ultimate objective.</overall_goal>
  <key_knowledge>Bullet list of facts, constraints, and decisions that must be remembered.</key_knowledge>
  <file_system_state>Current working directory, and for every file touched: READ, MODIFIED, or CREATED.</file_system_state>
  <recent_actions>Bullet list of the most recent significant actions taken.</recent_actions>
  <current_plan>Bullet list of plan steps, each prefixed with [DONE], [IN PROGRESS], or [TODO].</current_plan>
</state_snapshot>

Emit only this block. Do not call any tools.`
