package sqlinline

const QSelectProviderCredential = `--sql da9806e7-8283-4c32-ac81-8e6de1ca9cce
select api_key
from provider_credentials
where provider = $1::text
limit 1;
`

const QUpsertProviderCredential = `--sql f43ce1c5-918d-4f24-b202-fd35287494e9
insert into provider_credentials (provider, api_key, updated_at)
values ($1::text, $2::text, now())
on conflict (provider) do update set
    api_key = excluded.api_key,
    updated_at = now();
`
