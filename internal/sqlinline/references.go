package sqlinline

const QSelectActiveReferences = `--sql ae202ba2-88f2-4a75-be52-10c351e40cd6
select
    id,
    title,
    coalesce(category, '') as category,
    coalesce(style, '') as style,
    viral_score,
    coalesce(source_url, '') as source_url,
    active,
    created_at
from reference_thumbnails
where active
order by viral_score desc, id asc;
`

const QSelectThumbnailMetadata = `--sql 8a5df794-f15f-4fa9-84f0-6dad1d612413
select
    reference_id,
    coalesce(subject_position, '') as subject_position,
    coalesce(mood, '') as mood,
    coalesce(lighting, '') as lighting,
    coalesce(emotional_expression, '') as emotional_expression,
    coalesce(text_position, '') as text_position,
    coalesce(contrast, '') as contrast,
    has_text,
    coalesce(text_style, '') as text_style,
    coalesce(symmetry, '') as symmetry,
    color_palette,
    coalesce(notes, '') as notes,
    confidence
from thumbnail_metadata;
`

const QSelectTopicPreferences = `--sql 336ab580-bfb0-4b93-a1c4-e4620b68aacc
select topic, reference_ids, updated_at
from topic_preferences;
`

const QUpsertReference = `--sql a34ddceb-ece6-4d4a-a4de-d73315ac16c4
insert into reference_thumbnails (id, title, category, style, viral_score, source_url, active, created_at)
values ($1::text, $2::text, $3::text, $4::text, $5::double precision, $6::text, $7::boolean, now())
on conflict (id) do update set
    title = excluded.title,
    category = excluded.category,
    style = excluded.style,
    viral_score = excluded.viral_score,
    source_url = excluded.source_url,
    active = excluded.active;
`

const QUpsertThumbnailMetadata = `--sql 7f858d30-da09-4ff0-b207-53e491e4ce15
insert into thumbnail_metadata (reference_id, subject_position, mood, lighting, emotional_expression, text_position, contrast, has_text, text_style, symmetry, color_palette, notes, confidence)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::boolean, $9::text, $10::text, $11::jsonb, $12::text, $13::double precision)
on conflict (reference_id) do update set
    subject_position = excluded.subject_position,
    mood = excluded.mood,
    lighting = excluded.lighting,
    emotional_expression = excluded.emotional_expression,
    text_position = excluded.text_position,
    contrast = excluded.contrast,
    has_text = excluded.has_text,
    text_style = excluded.text_style,
    symmetry = excluded.symmetry,
    color_palette = excluded.color_palette,
    notes = excluded.notes,
    confidence = excluded.confidence;
`

const QUpsertTopicPreference = `--sql cd926e55-320a-4024-b599-3d7b1a6e11a6
insert into topic_preferences (topic, reference_ids, updated_at)
values ($1::text, $2::jsonb, now())
on conflict (topic) do update set
    reference_ids = excluded.reference_ids,
    updated_at = now();
`

const QDeactivateMissingReferences = `--sql 4317c5fc-8930-492c-889d-e6f08a0d41c3
update reference_thumbnails
set active = false
where active
  and not (id = any($1::text[]));
`
