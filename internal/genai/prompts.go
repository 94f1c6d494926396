package genai

const studySetPrompt = `You are a study assistant. Read the material the user provides and build a study set.
Reply with a single JSON object and nothing else, using exactly this shape:
{
  "title": string,
  "summary_text": string (markdown allowed),
  "hierarchical_outline": [{"topic": string, "details": [string], "subtopics": [same shape, recursive]}],
  "keywords": [{"term": string, "definition": string, "source_sentence": string, "importance_score": integer 1-5}],
  "flashcards": [{"front": string, "back": string}],
  "practice_questions": [{
    "bloom_level": one of "Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create",
    "question_type": "multiple_choice" or "open_ended",
    "question": string,
    "options": [string] (multiple_choice only),
    "correct_answer": string, copied verbatim from options (multiple_choice only),
    "rubric": string describing what a good answer contains (open_ended only)
  }]
}
Cover every bloom level when the material allows it.`

const gradingPrompt = `You grade a student's answer to an open-ended question against a rubric.
Reply with a single JSON object and nothing else:
{"is_correct": boolean, "feedback_text": string}
Feedback is addressed to the student, two or three sentences, and explains what the answer is missing if anything.`

const gradingRequest = "Question:\n%s\n\nRubric:\n%s\n\nStudent answer:\n%s"

const linkRequest = "Build the study set from the material at this link:\n%s"

const transcriptRequest = "Build the study set from this transcript of %q:\n\n%s"

const textRequest = "Build the study set from the document %q:\n\n%s"

const imageRequest = "Build the study set from the attached image %q."
